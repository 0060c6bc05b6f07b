package slidepreview

import (
	"fmt"
	"strings"
)

// Validate checks the document model for structural issues and returns an
// error describing all problems found, or nil if the document is valid.
func (d *Document) Validate() error {
	var errs []string
	if len(d.Slides) == 0 {
		errs = append(errs, "document has no slides")
	}
	ids := make(map[string]bool, len(d.Slides))
	for i, s := range d.Slides {
		prefix := fmt.Sprintf("slide %d", i+1)
		if s == nil {
			errs = append(errs, prefix+": slide is nil")
			continue
		}
		if ids[s.ID] {
			errs = append(errs, prefix+": duplicate slide id "+s.ID)
		}
		ids[s.ID] = true
		for _, e := range validateSlide(s) {
			errs = append(errs, prefix+": "+e)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("validation failed:\n  %s", strings.Join(errs, "\n  "))
}

func validateSlide(s *Slide) []string {
	var errs []string
	if s.Width <= 0 || s.Height <= 0 {
		errs = append(errs, fmt.Sprintf("size %gx%g must be positive", s.Width, s.Height))
	}
	if err := checkGroups(s.Elements); err != nil {
		return append(errs, err.Error())
	}
	WalkElements(s.Elements, func(e Element) bool {
		if e == nil {
			errs = append(errs, "nil element")
			return false
		}
		b := e.Base()
		prefix := fmt.Sprintf("element %s", b.ID)
		if b.Width < 0 || b.Height < 0 {
			errs = append(errs, prefix+": negative size")
		}
		if b.Opacity < 0 || b.Opacity > 1 {
			errs = append(errs, fmt.Sprintf("%s: opacity %g outside [0, 1]", prefix, b.Opacity))
		}
		if b.Rotation < 0 || b.Rotation >= 360 {
			errs = append(errs, fmt.Sprintf("%s: rotation %g not normalized", prefix, b.Rotation))
		}
		switch el := e.(type) {
		case *ImageElement:
			if el.Crop != nil {
				if err := validateCrop(el.Crop); err != nil {
					errs = append(errs, prefix+": "+err.Error())
				}
			}
			if el.Source.Ref == "" && len(el.Source.Data) == 0 {
				errs = append(errs, prefix+": image has no source")
			}
		case *TableElement:
			if len(el.Rows) == 0 {
				errs = append(errs, prefix+": table has no rows")
			}
		case *TextElement:
			if el.FontSize < 0 {
				errs = append(errs, prefix+": negative font size")
			}
		}
		return true
	})
	return errs
}

// checkGroups reports a group that contains itself or one of its ancestors.
func checkGroups(elements []Element) error {
	var visit func(elements []Element, path map[*GroupElement]bool) error
	visit = func(elements []Element, path map[*GroupElement]bool) error {
		for _, e := range elements {
			g, ok := e.(*GroupElement)
			if !ok {
				continue
			}
			if path[g] {
				return errorf(CodeRender, "validate", "group %s contains itself", g.ID)
			}
			path[g] = true
			if err := visit(g.Children, path); err != nil {
				return err
			}
			delete(path, g)
		}
		return nil
	}
	return visit(elements, make(map[*GroupElement]bool))
}
