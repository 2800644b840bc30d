// Package parts builds the ordered multimodal part list sent to image
// generation providers. Assembly is deterministic: the same input always
// produces the same parts in the same order.
package parts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/easelhq/easel-api/internal/models"
)

// PartKind discriminates text and image parts.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// Part is one element of a provider request.
type Part struct {
	Kind PartKind
	Text string // PartText
	Data []byte // PartImage
	MIME string // PartImage
}

// ImageInput is an already-fetched image.
type ImageInput struct {
	Data []byte
	MIME string
}

// AssemblyInput collects everything a generation prompt is built from.
// Source is the image being edited; Annotation is a user-drawn overlay
// marking regions to change; References are external style/content cues.
type AssemblyInput struct {
	Instruction string
	Variables   []models.Variable
	Source      *ImageInput
	Annotation  *ImageInput
	References  []models.Reference
}

// Assembler turns an AssemblyInput into provider parts, fetching reference
// images as needed.
type Assembler struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewAssembler creates an assembler. A nil fetcher disables reference images.
func NewAssembler(fetcher Fetcher, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{fetcher: fetcher, logger: logger}
}

// Assemble builds the ordered part list:
//
//	instruction text, variables summary, source image + label,
//	annotation image + label, then each reference image + label.
//
// Every image part is immediately followed by a text label carrying its
// running index ("Image 1", "Image 2", ...). References that fail to fetch
// are skipped with a warning and do not consume an index, so later labels
// stay consistent with what the provider actually receives.
func (a *Assembler) Assemble(ctx context.Context, in AssemblyInput) []Part {
	var out []Part

	if s := strings.TrimSpace(in.Instruction); s != "" {
		out = append(out, Part{Kind: PartText, Text: s})
	}

	if summary := variablesSummary(in.Variables); summary != "" {
		out = append(out, Part{Kind: PartText, Text: summary})
	}

	n := 1

	if in.Source != nil && len(in.Source.Data) > 0 {
		out = append(out,
			Part{Kind: PartImage, Data: in.Source.Data, MIME: orPNG(in.Source.MIME)},
			Part{Kind: PartText, Text: fmt.Sprintf("Image %d: the source image to edit.", n)},
		)
		n++
	}

	if in.Annotation != nil && len(in.Annotation.Data) > 0 {
		out = append(out,
			Part{Kind: PartImage, Data: in.Annotation.Data, MIME: orPNG(in.Annotation.MIME)},
			Part{Kind: PartText, Text: fmt.Sprintf("Image %d: annotation overlay marking the regions to change. Follow the markings as instructions only and never draw them in the output.", n)},
		)
		n++
	}

	for _, ref := range in.References {
		if a.fetcher == nil {
			a.logger.Warn("reference image skipped, no fetcher configured", "url", ref.URL)
			continue
		}
		data, mime, err := a.fetcher.Fetch(ctx, ref.URL)
		if err != nil {
			a.logger.Warn("reference image skipped", "url", ref.URL, "error", err)
			continue
		}

		label := fmt.Sprintf("Image %d: reference image.", n)
		if c := strings.TrimSpace(ref.Caption); c != "" {
			label = fmt.Sprintf("Image %d: %s", n, c)
		}
		out = append(out,
			Part{Kind: PartImage, Data: data, MIME: orPNG(mime)},
			Part{Kind: PartText, Text: label},
		)
		n++
	}

	return out
}

// variablesSummary renders variables as "name: v1, v2; other: v3".
// Order follows the input slice so output is deterministic.
func variablesSummary(vars []models.Variable) string {
	if len(vars) == 0 {
		return ""
	}

	groups := make([]string, 0, len(vars))
	for _, v := range vars {
		if v.Name == "" || len(v.Values) == 0 {
			continue
		}
		groups = append(groups, v.Name+": "+strings.Join(v.Values, ", "))
	}
	if len(groups) == 0 {
		return ""
	}
	return strings.Join(groups, "; ")
}

func orPNG(mime string) string {
	if mime == "" {
		return "image/png"
	}
	return mime
}
