package elastic

// indexBody is the creation payload applied to every harvest index.
//
// Dynamic templates type fields by naming convention: *_iso fields are
// dates, *_epoch fields are longs, and any other string becomes a
// keyword so it can be filtered and aggregated without analysis.
const indexBody = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "dynamic_templates": [
      {
        "iso_dates": {
          "match": "*_iso",
          "mapping": {"type": "date"}
        }
      },
      {
        "epoch_seconds": {
          "match": "*_epoch",
          "mapping": {"type": "long"}
        }
      },
      {
        "strings_as_keywords": {
          "match_mapping_type": "string",
          "mapping": {"type": "keyword", "ignore_above": 8191}
        }
      }
    ],
    "properties": {
      "id": {"type": "keyword"},
      "dataset_key": {"type": "keyword"},
      "source_url": {"type": "keyword"},
      "reference_number": {"type": "keyword"},
      "price": {"type": "long"},
      "bedrooms": {"type": "long"},
      "bathrooms": {"type": "long"},
      "total_area_sqft": {"type": "double"},
      "latitude": {"type": "double"},
      "longitude": {"type": "double"}
    }
  }
}`
