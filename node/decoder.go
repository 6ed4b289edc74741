package node

import (
	"github.com/pkg/errors"

	"go.viam.com/dualvision/rimage"
	"go.viam.com/dualvision/transport"
)

// Decoder converts an inbound transport message into the canonical RGB
// frame. It has no side effects beyond producing the buffer.
type Decoder struct {
	useCompressed bool
}

// NewDecoder returns a decoder for the configured frame source mode.
func NewDecoder(useCompressed bool) *Decoder {
	return &Decoder{useCompressed: useCompressed}
}

// Decode produces a fresh, exclusively owned frame for this pass. Raw
// frames are validated against their declared dimensions and reordered
// BGR to RGB; compressed frames are decompressed. Any mismatch or failed
// decompression fails the frame.
func (d *Decoder) Decode(msg transport.Headed) (*rimage.Image, error) {
	switch m := msg.(type) {
	case *transport.RawFrame:
		if d.useCompressed {
			return nil, errors.New("got raw frame on a compressed frame source")
		}
		img, err := rimage.NewImageFromBGR(m.Data, m.Width, m.Height)
		if err != nil {
			return nil, errors.Wrap(err, "could not decode raw frame")
		}
		return img, nil
	case *transport.CompressedFrame:
		if !d.useCompressed {
			return nil, errors.New("got compressed frame on a raw frame source")
		}
		img, err := rimage.DecodeImage(m.Data)
		if err != nil {
			return nil, errors.Wrap(err, "could not decode compressed frame")
		}
		return img, nil
	default:
		return nil, errors.Errorf("unexpected frame message type %T", msg)
	}
}
