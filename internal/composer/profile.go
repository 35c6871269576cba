package composer

import (
	"context"
	"fmt"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	perr "github.com/aevon-lab/trackpipe/internal/core/errors"
)

// Profile composes a profile record. Profile properties start from the
// caller's document only; no device or context enrichment applies.
func (c *Composer) Profile(ctx context.Context, req ProfileRequest) error {
	if !req.Kind.IsProfile() {
		return fmt.Errorf("%s is not a profile kind", req.Kind)
	}
	if err := c.checkRemote(""); err != nil {
		return err
	}
	if err := c.Sanitizer.ValidatePropertyTypes(req.Props); err != nil {
		return fmt.Errorf("%s: %w", req.Kind, err)
	}
	if err := checkProfileValues(req.Kind, req.Props); err != nil {
		return err
	}

	rec := c.newRecord(req.Kind, req.At)
	c.stampIdentity(rec)
	rec.Lib = c.lib(v1.LibMethodCode, req.Origin)
	rec.Properties = req.Props.Clone()
	return c.finish(ctx, rec)
}

// checkProfileValues enforces the value shape each profile operation needs.
func checkProfileValues(kind v1.Kind, p *v1.Properties) error {
	var err error
	p.Range(func(key string, v v1.Value) bool {
		switch kind {
		case v1.KindProfileIncrement:
			if v.Kind() != v1.ValueNumber {
				err = perr.NewInvalidTypeError(key, "profile_increment values must be numbers")
			}
		case v1.KindProfileAppend:
			items, ok := v.AsList()
			if !ok {
				err = perr.NewInvalidTypeError(key, "profile_append values must be lists")
				break
			}
			for _, item := range items {
				if item.Kind() != v1.ValueString {
					err = perr.NewInvalidTypeError(key, "profile_append lists must hold strings")
					break
				}
			}
		}
		return err == nil
	})
	return err
}
