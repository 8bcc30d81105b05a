package flvrepair

import "github.com/jmylchreest/streamvault/internal/flv"

// Defragment buffers tags until it has accumulated enough of them to
// consider the stream prefix coherent, then flushes the buffer and forwards
// every subsequent item directly. Header and script tags are buffered
// alongside media tags but never counted toward the threshold, and are
// forwarded verbatim in their original position once emission begins.
type Defragment struct {
	minBuffer int
	buffer    []Data
	mediaSeen int
	started   bool
}

// NewDefragment constructs a Defragment stage with the given minimum media
// tag count. A non-positive value disables buffering entirely.
func NewDefragment(minBuffer int) *Defragment {
	return &Defragment{minBuffer: minBuffer}
}

func (d *Defragment) Name() string { return "Defragment" }

func (d *Defragment) Process(item Data, emit func(Data) error) error {
	if d.started {
		return emit(item)
	}

	d.buffer = append(d.buffer, item)
	if item.Kind == flv.DataKindTag && item.Tag.Type != flv.TagTypeScript {
		d.mediaSeen++
	}

	if d.mediaSeen >= d.minBuffer {
		return d.flush(emit)
	}
	return nil
}

func (d *Defragment) Finish(emit func(Data) error) error {
	if d.started {
		return nil
	}
	return d.flush(emit)
}

func (d *Defragment) flush(emit func(Data) error) error {
	d.started = true
	buffered := d.buffer
	d.buffer = nil
	for _, item := range buffered {
		if err := emit(item); err != nil {
			return err
		}
	}
	return nil
}
