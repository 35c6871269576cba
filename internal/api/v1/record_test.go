package v1

import (
	"encoding/json"
	"testing"
)

func validTrackRecord() EventRecord {
	props := NewProperties()
	props.Set("amount", Int(10))
	return EventRecord{
		TrackID:     "trk-1",
		Kind:        KindTrack,
		Event:       "Purchase",
		Time:        1767225600000,
		DistinctID:  "anon-1",
		AnonymousID: "anon-1",
		Lib:         LibInfo{Lib: "Go", Version: "1.0.0", Method: LibMethodCode},
		Properties:  props,
	}
}

func TestEventRecord_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *EventRecord)
		wantErr bool
	}{
		{
			name:    "valid track record",
			mutate:  func(r *EventRecord) {},
			wantErr: false,
		},
		{
			name:    "missing track id",
			mutate:  func(r *EventRecord) { r.TrackID = "" },
			wantErr: true,
		},
		{
			name:    "track without event name",
			mutate:  func(r *EventRecord) { r.Event = "" },
			wantErr: true,
		},
		{
			name:    "missing distinct id",
			mutate:  func(r *EventRecord) { r.DistinctID = "" },
			wantErr: true,
		},
		{
			name:    "missing time",
			mutate:  func(r *EventRecord) { r.Time = 0 },
			wantErr: true,
		},
		{
			name: "signup without original id",
			mutate: func(r *EventRecord) {
				r.Kind = KindTrackSignup
				r.Event = "$SignUp"
			},
			wantErr: true,
		},
		{
			name: "profile record needs no event name",
			mutate: func(r *EventRecord) {
				r.Kind = KindProfileSet
				r.Event = ""
			},
			wantErr: false,
		},
		{
			name: "item record needs item fields not distinct id",
			mutate: func(r *EventRecord) {
				r.Kind = KindItemSet
				r.Event = ""
				r.DistinctID = ""
				r.ItemType = "book"
				r.ItemID = "b-1"
			},
			wantErr: false,
		},
		{
			name: "item record without item id",
			mutate: func(r *EventRecord) {
				r.Kind = KindItemDelete
				r.ItemType = "book"
			},
			wantErr: true,
		},
		{
			name:    "marker left in properties",
			mutate:  func(r *EventRecord) { r.Properties.Set(MarkerToken, String("tok")) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validTrackRecord()
			tt.mutate(&rec)
			err := rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("EventRecord.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	testCases := []struct {
		in         string
		want       Kind
		shouldPass bool
	}{
		{"track", KindTrack, true},
		{"TRACK_SIGNUP", KindTrackSignup, true},
		{" profile_set_once ", KindProfileSetOnce, true},
		{"item_delete", KindItemDelete, true},
		{"page_view", "", false},
		{"", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseKind(tc.in)
			if tc.shouldPass && (err != nil || got != tc.want) {
				t.Errorf("ParseKind(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
			}
			if !tc.shouldPass && err == nil {
				t.Errorf("ParseKind(%q) expected error", tc.in)
			}
		})
	}
}

func TestEventRecord_JSONShape(t *testing.T) {
	rec := validTrackRecord()
	rec.LoginID = "user-42"

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded["type"] != "track" {
		t.Errorf("type mismatch: got %v", decoded["type"])
	}
	if decoded["_track_id"] != "trk-1" {
		t.Errorf("_track_id mismatch: got %v", decoded["_track_id"])
	}
	if _, ok := decoded["original_id"]; ok {
		t.Errorf("original_id should be omitted for plain track records")
	}
	lib, ok := decoded["lib"].(map[string]any)
	if !ok || lib["$lib_method"] != "code" {
		t.Errorf("lib block mismatch: got %v", decoded["lib"])
	}
	props, ok := decoded["properties"].(map[string]any)
	if !ok || props["amount"] != float64(10) {
		t.Errorf("properties mismatch: got %v", decoded["properties"])
	}
}
