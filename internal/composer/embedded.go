package composer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	perr "github.com/aevon-lab/trackpipe/internal/core/errors"
	"github.com/aevon-lab/trackpipe/internal/props"
)

// embeddedDoc is the document a web view hands over. Transport fields such
// as _nocache, server_url and _flush_time are not decoded and so never
// reach the record.
type embeddedDoc struct {
	Type       string         `json:"type"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	ItemType   string         `json:"item_type"`
	ItemID     string         `json:"item_id"`
	Properties *v1.Properties `json:"properties"`
	Lib        *v1.LibInfo    `json:"lib"`
}

func parseEmbedded(raw []byte) (*embeddedDoc, v1.Kind, error) {
	var doc embeddedDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		if errors.Is(err, v1.ErrUnsupportedValue) {
			return nil, "", perr.NewInvalidTypeError("properties", err.Error())
		}
		return nil, "", fmt.Errorf("decode embedded event: %w", err)
	}
	kind, err := v1.ParseKind(doc.Type)
	if err != nil {
		return nil, "", perr.NewInvalidTypeError("type", err.Error())
	}
	return &doc, kind, nil
}

// Embedded composes a record from a web-view document. It follows the same
// precedence, suppression and marker rules as code-originated records.
func (c *Composer) Embedded(ctx context.Context, req EmbeddedRequest) error {
	doc, kind, err := parseEmbedded(req.Raw)
	if err != nil {
		return err
	}

	if kind.IsTrack() {
		if err := c.Sanitizer.ValidateKey(doc.Event); err != nil {
			return fmt.Errorf("embedded event name: %w", err)
		}
	}
	if err := c.checkRemote(doc.Event); err != nil {
		return err
	}
	if err := c.Sanitizer.ValidatePropertyTypes(doc.Properties); err != nil {
		return fmt.Errorf("embedded %s: %w", kind, err)
	}

	rec := c.newRecord(kind, req.At)
	rec.Hybrid = true
	rec.Lib = c.embeddedLib(doc.Lib)

	switch {
	case kind.IsTrack():
		rec.Event = doc.Event
		rec.Properties = c.Merger.Merge(ctx, props.Request{
			Event:        doc.Event,
			Props:        doc.Properties,
			At:           req.At,
			Now:          c.now(),
			FirstDayFlag: true,
		})
	case kind.IsItem():
		if doc.ItemType == "" || doc.ItemID == "" {
			return perr.NewInvalidTypeError("item_id", "embedded item event without item_type or item_id")
		}
		rec.ItemType = doc.ItemType
		rec.ItemID = doc.ItemID
		rec.Properties = doc.Properties.Clone()
		return c.finish(ctx, rec)
	default:
		rec.Properties = doc.Properties.Clone()
	}

	if kind == v1.KindTrackSignup {
		if err := c.Sanitizer.ValidateLoginID(doc.DistinctID); err != nil {
			return err
		}
		return c.Identity.Login(ctx, doc.DistinctID, func(ctx context.Context, loginID, originalID string) error {
			rec.DistinctID = loginID
			rec.LoginID = loginID
			rec.AnonymousID = originalID
			rec.OriginalID = originalID
			return c.finish(ctx, rec)
		})
	}

	c.stampIdentity(rec)
	return c.finish(ctx, rec)
}

// embeddedLib keeps the web view's lib block and fills in what it lacks.
func (c *Composer) embeddedLib(in *v1.LibInfo) v1.LibInfo {
	lib := c.lib(v1.LibMethodCode, "")
	if in == nil {
		return lib
	}
	out := *in
	if out.Lib == "" {
		out.Lib = lib.Lib
	}
	if out.Version == "" {
		out.Version = lib.Version
	}
	if out.Method == "" {
		out.Method = v1.LibMethodCode
	}
	if lib.AppVersion != "" {
		out.AppVersion = lib.AppVersion
	}
	out.PluginVersions = nil
	return out
}
