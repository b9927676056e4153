package normalize

import "github.com/custodia-labs/harvester/internal/core/domain"

// Built-in field maps. The source keys follow the CRM-flavoured wire
// names the listing sites expose in their bootstrap payloads.
var schemas = map[string]*Schema{
	"property": {
		Name: "property",
		Fields: []Field{
			{Target: "id", Source: "id"},
			{Target: "reference_number", Source: "pba__broker_s_listing_id__c"},
			{Target: "price", Source: "pba__listingprice_pb__c", Kind: KindInt},
			{Target: "bedrooms", Source: "pba__bedrooms_pb__c", Kind: KindInt},
			{Target: "bathrooms", Source: "pba__fullbathrooms_pb__c", Kind: KindInt},
			{Target: "total_area_sqft", Source: "pba__totalarea_pb__c", Kind: KindFloat},
			{Target: "listing_area", Source: "listing_area"},
			{Target: "property_type", Source: "property_type_website__c"},
			{Target: "listing_status", Source: "pba__status__c"},
			{Target: "listing_type", Source: "pba__listingtype__c"},
			{Target: "business_type", Source: "business_type_aa__c"},
			{Target: "latitude", Source: "pba__latitude_pb__c", Kind: KindFloat},
			{Target: "longitude", Source: "pba__longitude_pb__c", Kind: KindFloat},
			{Target: "listing_agent_name", Source: "listing_agent_name"},
			{Target: "listing_agent_mobile", Source: "listing_agent_mobile"},
			{Target: "listing_agent_email", Source: "listing_agent_Email"},
			{Target: "property_video", Source: "property_video"},
			{Target: "detail_url", Source: "listing_url"},
			{Target: "listed_date", Source: "listing_date__c", Kind: KindDate},
			{Target: "images", Source: "images", Kind: KindList},
			{Target: "name", Source: "name"},
			{Target: "property_id", Source: "pba__property__c"},
		},
		Identity: []string{"id", "_id", "pba__broker_s_listing_id__c", "pba__property__c"},
	},

	"property_detail": {
		Name: "property_detail",
		Fields: []Field{
			{Target: "detail_name", Source: "name"},
			{Target: "detail_price", Source: "pba__listingprice_pb__c", Kind: KindInt},
			{Target: "detail_description", Source: "pba__description_pb__c"},
			{Target: "detail_brief_description", Source: "pba_brief_description__c"},
			{Target: "detail_images", Source: "images", Kind: KindList},
			{Target: "detail_image_count", Source: "image_count", Kind: KindInt},
			{Target: "detail_private_amenities", Source: "pba_uaefields__private_amenities__c", Kind: KindList},
			{Target: "detail_commercial_amenities", Source: "pba_uaefields__commercial_amenities__c", Kind: KindList},
			{Target: "detail_country", Source: "pba__country_pb__c"},
			{Target: "detail_city", Source: "pba__city_pb__c"},
			{Target: "detail_address", Source: "pba__address_pb__c"},
			{Target: "detail_transferred_date", Source: "transferred_date__c", Kind: KindDate},
		},
		Identity: []string{"id", "_id"},
	},

	"vehicle": {
		Name: "vehicle",
		Fields: []Field{
			{Target: "id", Source: "id"},
			{Target: "price", Source: "price", Kind: KindInt},
			{Target: "name", Source: "name"},
			{Target: "detail_url", Source: "url"},
			{Target: "model", Source: "model"},
			{Target: "model_year", Source: "vehicleModelDate", Kind: KindInt},
			{Target: "transmission", Source: "vehicleTransmission"},
			{Target: "body_type", Source: "bodyType"},
			{Target: "color", Source: "color"},
			{Target: "mileage_value", Source: "mileageFromOdometer.value", Kind: KindInt},
			{Target: "mileage_unit", Source: "mileageFromOdometer.unitCode"},
			{Target: "images", Source: "image", Kind: KindList},
		},
		Identity: []string{"id"},
	},
}

// ForName returns the named schema, or the generic passthrough schema
// when name is empty. Unknown names return ErrUnsupportedType.
func ForName(name string) (*Schema, error) {
	if name == "" {
		return Generic(), nil
	}
	s, ok := schemas[name]
	if !ok {
		return nil, domain.ErrUnsupportedType
	}
	return s, nil
}

// Generic returns the passthrough schema used for tabular datasets:
// every column survives scalar normalisation under its own name.
func Generic() *Schema {
	return &Schema{
		Name:        "generic",
		Identity:    []string{"_id", "id"},
		Passthrough: true,
	}
}
