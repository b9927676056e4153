package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/harvester/internal/core/domain"
)

var propertyDS = domain.DatasetDescriptor{Key: "sales", Schema: "property"}

func normalizeProperty(t *testing.T, raw map[string]any) (domain.NormalizedRecord, bool) {
	t.Helper()
	schema, err := ForName("property")
	require.NoError(t, err)
	return schema.Record(raw, propertyDS, "https://site.example/page/1", time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC))
}

func TestRecordCompleteAndSparse(t *testing.T) {
	// Record A: all fields present. Record B: missing numeric field and
	// a literal NULL placeholder; both must be absent, not empty.
	recA, ok := normalizeProperty(t, map[string]any{
		"id":                      "A",
		"pba__listingprice_pb__c": []any{"1,250,000"},
		"pba__bedrooms_pb__c":     []any{"3"},
		"property_video":          []any{"https://cdn.example/a.mp4"},
		"name":                    []any{" Marina View "},
	})
	require.True(t, ok)
	assert.Equal(t, "A", recA.Identity)
	assert.Equal(t, int64(1250000), recA.Fields["price"])
	assert.Equal(t, int64(3), recA.Fields["bedrooms"])
	assert.Equal(t, "https://cdn.example/a.mp4", recA.Fields["property_video"])
	assert.Equal(t, "Marina View", recA.Fields["name"])

	recB, ok := normalizeProperty(t, map[string]any{
		"id":             "B",
		"property_video": "NULL",
		"name":           "Palm Court",
	})
	require.True(t, ok)
	assert.Equal(t, "B", recB.Identity)
	assert.NotContains(t, recB.Fields, "bedrooms")
	assert.NotContains(t, recB.Fields, "property_video")
}

func TestRecordStamps(t *testing.T) {
	rec, ok := normalizeProperty(t, map[string]any{"id": "A"})
	require.True(t, ok)
	assert.Equal(t, "sales", rec.Fields["dataset_key"])
	assert.Equal(t, "https://site.example/page/1", rec.Fields["source_url"])
	assert.Equal(t, "2024-01-20T10:00:00Z", rec.Fields["extracted_at_iso"])
}

func TestRecordListHandling(t *testing.T) {
	rec, ok := normalizeProperty(t, map[string]any{
		"id":           "A",
		"images":       []any{" one.jpg ", "", "NULL", "two.jpg"},
		"listing_area": []any{", Downtown ", "ignored"},
	})
	require.True(t, ok)
	// images is list-preserving; listing_area projects to first element.
	assert.Equal(t, []any{"one.jpg", "two.jpg"}, rec.Fields["images"])
	assert.Equal(t, ", Downtown", rec.Fields["listing_area"])
}

func TestRecordNumericCoercion(t *testing.T) {
	rec, ok := normalizeProperty(t, map[string]any{
		"id":                      "A",
		"pba__listingprice_pb__c": "not a number",
		"pba__totalarea_pb__c":    " 1,204.5 ",
	})
	require.True(t, ok)
	assert.NotContains(t, rec.Fields, "price")
	assert.Equal(t, 1204.5, rec.Fields["total_area_sqft"])
}

func TestIdentityResolutionOrder(t *testing.T) {
	rec, ok := normalizeProperty(t, map[string]any{
		"_id":                         "envelope-1",
		"pba__broker_s_listing_id__c": "REF-9",
	})
	require.True(t, ok)
	// id absent: the envelope ID outranks the reference number.
	assert.Equal(t, "envelope-1", rec.Identity)

	rec, ok = normalizeProperty(t, map[string]any{
		"pba__broker_s_listing_id__c": "REF-9",
	})
	require.True(t, ok)
	assert.Equal(t, "REF-9", rec.Identity)
}

func TestIdentityFingerprintFallback(t *testing.T) {
	raw := map[string]any{"name": "No ID Tower", "listing_area": "Downtown"}

	rec1, ok := normalizeProperty(t, raw)
	require.True(t, ok)
	require.NotEmpty(t, rec1.Identity)

	rec2, ok := normalizeProperty(t, raw)
	require.True(t, ok)
	assert.Equal(t, rec1.Identity, rec2.Identity, "fingerprint must be stable across fetches")
}

func TestRecordDropsEmpty(t *testing.T) {
	_, ok := normalizeProperty(t, map[string]any{"property_video": "NULL"})
	assert.False(t, ok)
}

func TestDateFieldsEmitEpochAndISO(t *testing.T) {
	schema, err := ForName("property_detail")
	require.NoError(t, err)
	rec, ok := schema.Record(map[string]any{
		"id":                  "A",
		"transferred_date__c": "2024-01-05T08:30:00Z",
		"pba__country_pb__c":  "AE",
	}, propertyDS, "https://site.example/property/A", time.Now())
	require.True(t, ok)
	assert.Equal(t, "2024-01-05T08:30:00Z", rec.Fields["detail_transferred_date_iso"])
	assert.Equal(t, int64(1704443400), rec.Fields["detail_transferred_date_epoch"])
}

func TestGenericPassthrough(t *testing.T) {
	ds := domain.DatasetDescriptor{Key: "transactions"}
	rec, ok := Generic().Record(map[string]any{
		"transaction_id": "T-1",
		"amount":         float64(500000),
		"empty":          "  ",
		"wrapped":        []any{"first", "second"},
	}, ds, "https://portal.example/data", time.Now())
	require.True(t, ok)
	assert.Equal(t, "T-1", rec.Fields["transaction_id"])
	assert.Equal(t, float64(500000), rec.Fields["amount"])
	assert.NotContains(t, rec.Fields, "empty")
	assert.Equal(t, "first", rec.Fields["wrapped"])
	// No explicit identity column: content fingerprint applies.
	assert.NotEmpty(t, rec.Identity)
}

func TestGenericIdentityColumn(t *testing.T) {
	ds := domain.DatasetDescriptor{Key: "transactions"}
	rec, ok := Generic().Record(map[string]any{"id": float64(42), "v": "x"}, ds, "u", time.Now())
	require.True(t, ok)
	assert.Equal(t, "42", rec.Identity)
}

func TestMergeOverrides(t *testing.T) {
	base := map[string]any{"price": int64(100), "name": "summary"}
	Merge(base, map[string]any{"name": "detail", "detail_city": "Dubai"})
	assert.Equal(t, "detail", base["name"])
	assert.Equal(t, "Dubai", base["detail_city"])
	assert.Equal(t, int64(100), base["price"])
}

func TestForNameUnknown(t *testing.T) {
	_, err := ForName("no-such-schema")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-01-10", "2024-01-10", true},
		{"2024-01-10T08:30:00Z", "2024-01-10", true},
		{"2024-01-10T08:30:00", "2024-01-10", true},
		{"15/03/2024", "2024-03-15", true},
		{" 2024-01-10 ", "2024-01-10", true},
		{"not a date", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got.Format(domain.DateLayout))
			}
		})
	}
}
