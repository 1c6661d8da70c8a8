package serial

import (
	"errors"

	"github.com/roach88/chainflow/internal/block"
)

var (
	// ErrNotSerializable is returned for kinds and object types the codec
	// cannot represent.
	ErrNotSerializable = errors.New("not serializable")

	// ErrUnknownBlock is returned when a decoded block name is not
	// registered.
	ErrUnknownBlock = block.ErrUnknownBlock

	// ErrCorrupt is returned for malformed input such as an invalid tag.
	ErrCorrupt = errors.New("corrupt encoding")
)
