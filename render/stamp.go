package render

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/hazyhaar/ctrldoc/masthead"
)

// watermarkDesc is the pdfcpu description of the controlled-copy stamp.
const watermarkDesc = "font:Helvetica, points:36, rot:45, op:0.25, fillcolor:#C00000"

// Stamper post-processes rendered PDFs from either engine: it records the
// controlling metadata as document properties and, for controlled copies,
// stamps a diagonal watermark naming the recipient on every page.
type Stamper struct {
	conf *model.Configuration
}

// NewStamper creates a Stamper with the pdfcpu default configuration.
func NewStamper() *Stamper {
	return &Stamper{conf: model.NewDefaultConfiguration()}
}

// Stamp returns a stamped copy of pdf. The input slice is not modified.
func (s *Stamper) Stamp(pdf []byte, f masthead.Fields, tag Tag) ([]byte, error) {
	props := map[string]string{
		"DocNumber": f.DocNumber,
		"Revision":  f.RevisionNo,
		"Status":    f.Status,
		"Engine":    string(tag),
	}
	if f.Recipient != "" {
		props["ControlledCopy"] = f.Recipient
	}

	var out bytes.Buffer
	if err := api.AddProperties(bytes.NewReader(pdf), &out, props, s.conf); err != nil {
		return nil, stageError(tag, "stamp", fmt.Errorf("properties: %w", err))
	}
	if f.ControlCopy == "" {
		return out.Bytes(), nil
	}

	text := masthead.ControlledCopyMarker
	if f.Recipient != "" {
		text += " - " + f.Recipient
	}
	wm, err := api.TextWatermark(text, watermarkDesc, true, false, types.POINTS)
	if err != nil {
		return nil, stageError(tag, "stamp", fmt.Errorf("watermark: %w", err))
	}
	var marked bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(out.Bytes()), &marked, nil, wm, s.conf); err != nil {
		return nil, stageError(tag, "stamp", fmt.Errorf("watermark: %w", err))
	}
	return marked.Bytes(), nil
}
