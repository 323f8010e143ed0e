package search

import (
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// DocTypeZone is the document type of safety zones.
const DocTypeZone = "zone"

// Zone field names.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldZoneType    = "zoneType"
	FieldCrowdLevel  = "crowdLevel"
	FieldRiskScore   = "riskScore"
)

// TextFields are searched by free-text queries.
var TextFields = []string{FieldName, FieldDescription}

func BuildIndexMapping(defaultAnalyzer string) *mapping.IndexMappingImpl {
	if defaultAnalyzer == "" {
		defaultAnalyzer = standard.Name
	}
	idx := mapping.NewIndexMapping()
	idx.DefaultAnalyzer = defaultAnalyzer
	idx.TypeField = "type"

	// 文本
	text := mapping.NewTextFieldMapping()
	text.Store = true
	text.Index = true
	text.Analyzer = defaultAnalyzer
	text.IncludeInAll = true

	// 关键词
	kw := mapping.NewTextFieldMapping()
	kw.Store = true
	kw.Index = true
	kw.Analyzer = keyword.Name

	num := mapping.NewNumericFieldMapping()
	num.Store = true
	num.Index = true

	zone := mapping.NewDocumentMapping()
	zone.Dynamic = false
	zone.AddFieldMappingsAt(FieldName, text)
	zone.AddFieldMappingsAt(FieldDescription, text)
	zone.AddFieldMappingsAt(FieldZoneType, kw)
	zone.AddFieldMappingsAt(FieldCrowdLevel, kw)
	zone.AddFieldMappingsAt(FieldRiskScore, num)
	idx.AddDocumentMapping(DocTypeZone, zone)

	def := mapping.NewDocumentMapping()
	def.Dynamic = false
	idx.DefaultMapping = def
	return idx
}
