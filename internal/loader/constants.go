package loader

import (
	"context"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/spritegrid/internal/constants"
	"github.com/vk/spritegrid/internal/fetch"
	"github.com/vk/spritegrid/internal/literal"
	"github.com/vk/spritegrid/internal/tabular"
)

// declareConstants evaluates the manifest's constants table. External raw
// and tabular declarations schedule additional fetches; the session does
// not drain until they resolve. Alias cycles fail the load here, eagerly.
func (s *session) declareConstants(ctx context.Context, m *Manifest) error {
	decls, err := m.constantDecls(s.manifestURL)
	if err != nil {
		return err
	}
	for _, d := range decls {
		ext, err := s.src.Constants.Declare(d)
		if err != nil {
			return configErrf(s.manifestURL, "%v", err)
		}
		if ext != nil {
			s.scheduleExternal(ctx, d.Name, ext)
		}
	}
	if err := s.src.Constants.CheckCycles(); err != nil {
		return configErrf(s.manifestURL, "%v", err)
	}
	return nil
}

// scheduleExternal fetches the source behind a raw or table constant. The
// format follows the declaration tag, except that a .csv extension always
// selects the tabular grammar.
func (s *session) scheduleExternal(ctx context.Context, name string, ext *constants.External) {
	srcURL := resolveURL(s.manifestURL, ext.URL)
	s.sched.Schedule(ctx, Request{
		URL:  srcURL,
		Kind: fetch.Text,
		OnSuccess: func(ctx context.Context, payload any) error {
			text := string(payload.([]byte))

			var v cty.Value
			if ext.Table || strings.HasSuffix(srcURL, ".csv") {
				t, err := tabular.Parse(text, tabular.Options{Transpose: ext.Transpose})
				if err != nil {
					return configErrf(srcURL, "constant %q: %v", name, err)
				}
				v = t.Value()
			} else {
				var err error
				v, err = literal.Parse(strings.TrimSpace(text))
				if err != nil {
					return configErrf(srcURL, "constant %q: %v", name, err)
				}
			}
			s.src.Constants.ResolveExternal(name, v)
			return nil
		},
	})
}
