package composer

import (
	"context"
	"fmt"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	perr "github.com/aevon-lab/trackpipe/internal/core/errors"
)

// Item composes an item_set or item_delete record. Items are not tied to a
// user, so no identity or merging applies.
func (c *Composer) Item(ctx context.Context, req ItemRequest) error {
	if !req.Kind.IsItem() {
		return fmt.Errorf("%s is not an item kind", req.Kind)
	}
	if err := c.Sanitizer.ValidateKey(req.ItemType); err != nil {
		return fmt.Errorf("item type: %w", err)
	}
	if req.ItemID == "" {
		return perr.NewInvalidTypeError("item_id", "item id is empty")
	}
	if _, truncated := c.Sanitizer.Truncate("item_id", req.ItemID); truncated {
		return perr.NewInvalidTypeError("item_id", "item id is too long")
	}
	if err := c.checkRemote(""); err != nil {
		return err
	}
	if err := c.Sanitizer.ValidatePropertyTypes(req.Props); err != nil {
		return fmt.Errorf("%s: %w", req.Kind, err)
	}

	at := req.At
	if !req.Time.IsZero() {
		at = req.Time
	}
	rec := c.newRecord(req.Kind, at)
	rec.ItemType = req.ItemType
	rec.ItemID = req.ItemID
	rec.Lib = c.lib(v1.LibMethodCode, req.Origin)
	rec.Properties = req.Props.Clone()
	return c.finish(ctx, rec)
}
