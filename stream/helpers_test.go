package stream

import (
	"slices"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

// --- getStringAttr Tests ---

func TestGetStringAttr(t *testing.T) {
	tests := []struct {
		name  string
		image map[string]events.DynamoDBAttributeValue
		key   string
		want  string
	}{
		{
			name:  "existing string",
			image: map[string]events.DynamoDBAttributeValue{"name": events.NewStringAttribute("books")},
			key:   "name",
			want:  "books",
		},
		{
			name:  "missing key",
			image: map[string]events.DynamoDBAttributeValue{"other": events.NewStringAttribute("value")},
			key:   "name",
			want:  "",
		},
		{
			name:  "empty image",
			image: map[string]events.DynamoDBAttributeValue{},
			key:   "name",
			want:  "",
		},
		{
			name:  "nil image",
			image: nil,
			key:   "name",
			want:  "",
		},
		{
			name:  "number attribute",
			image: map[string]events.DynamoDBAttributeValue{"name": events.NewNumberAttribute("42")},
			key:   "name",
			want:  "",
		},
		{
			name:  "unicode value",
			image: map[string]events.DynamoDBAttributeValue{"value": events.NewStringAttribute(`[{"id":1,"title":"日本語"}]`)},
			key:   "value",
			want:  `[{"id":1,"title":"日本語"}]`,
		},
		{
			name:  "special characters",
			image: map[string]events.DynamoDBAttributeValue{"name": events.NewStringAttribute("app/v1:books")},
			key:   "name",
			want:  "app/v1:books",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getStringAttr(tt.image, tt.key); got != tt.want {
				t.Errorf("getStringAttr() = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- removedIDs Tests ---

func TestRemovedIDs(t *testing.T) {
	tests := []struct {
		name          string
		before, after []int64
		want          []int64
	}{
		{"nothing removed", []int64{1, 2}, []int64{1, 2}, nil},
		{"one removed", []int64{1, 2, 3}, []int64{1, 3}, []int64{2}},
		{"all removed", []int64{1, 2}, nil, []int64{1, 2}},
		{"only additions", []int64{1}, []int64{1, 2}, nil},
		{"keeps before order", []int64{5, 3, 4}, []int64{4}, []int64{5, 3}},
		{"empty before", nil, []int64{1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := removedIDs(tt.before, tt.after); !slices.Equal(got, tt.want) {
				t.Errorf("removedIDs(%v, %v) = %v, want %v", tt.before, tt.after, got, tt.want)
			}
		})
	}
}

// --- imageIDs Tests ---

func TestImageIDs(t *testing.T) {
	h := NewHandler(nil, nil)

	tests := []struct {
		name  string
		value *events.DynamoDBAttributeValue
		want  []int64
	}{
		{"missing value", nil, nil},
		{"empty table", ptr(events.NewStringAttribute(`[]`)), []int64{}},
		{"records", ptr(events.NewStringAttribute(`[{"id":1},{"id":"x"},{"id":3}]`)), []int64{1, 3}},
		{"raw object", ptr(events.NewStringAttribute(`{"id":1}`)), nil},
		{"malformed", ptr(events.NewStringAttribute(`[{"id":1}`)), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			image := map[string]events.DynamoDBAttributeValue{}
			if tt.value != nil {
				image["value"] = *tt.value
			}
			if got := h.imageIDs("books", image); !slices.Equal(got, tt.want) {
				t.Errorf("imageIDs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }
