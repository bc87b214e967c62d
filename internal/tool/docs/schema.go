package docs

import "encoding/json"

// JSON Schema descriptors published through the tool listing.
var (
	searchInput = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "minLength": 1, "maxLength": 1000, "description": "Search query with historical context"},
    "document_ids": {"type": "array", "items": {"type": "string"}, "description": "Optional list of document IDs to search within"}
  },
  "required": ["query"]
}`)

	searchOutput = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string"},
    "enhanced_query": {"type": "string"},
    "results": {"type": "array", "items": {"type": "object"}},
    "total_results": {"type": "integer"},
    "search_strategy": {"type": "string"}
  }
}`)

	documentsInput = json.RawMessage(`{
  "type": "object",
  "properties": {
    "document_ids": {"type": "array", "items": {"type": "string"}, "description": "Optional list of document IDs to analyze"}
  }
}`)

	timelineOutput = json.RawMessage(`{
  "type": "object",
  "properties": {
    "total_events": {"type": "integer"},
    "timeline_events": {"type": "array", "items": {"type": "object"}},
    "grouped_by_period": {"type": "object"},
    "timeline_summary": {"type": "string"},
    "date_range": {"type": "object", "properties": {"start": {"type": "string"}, "end": {"type": "string"}}}
  }
}`)

	entitiesOutput = json.RawMessage(`{
  "type": "object",
  "properties": {
    "total_entities": {"type": "integer"},
    "entities_by_type": {"type": "object"},
    "entity_relationships": {"type": "object"},
    "entity_summary": {"type": "string"},
    "extraction_method": {"type": "string"}
  }
}`)

	crossReferenceInput = json.RawMessage(`{
  "type": "object",
  "properties": {
    "topic": {"type": "string", "minLength": 1, "maxLength": 500, "description": "Topic to cross-reference across documents"},
    "document_ids": {"type": "array", "items": {"type": "string"}, "description": "Optional list of document IDs to compare"}
  },
  "required": ["topic"]
}`)

	crossReferenceOutput = json.RawMessage(`{
  "type": "object",
  "properties": {
    "topic": {"type": "string"},
    "documents_analyzed": {"type": "integer"},
    "cross_references": {"type": "array", "items": {"type": "object"}},
    "analysis": {"type": "object"},
    "summary": {"type": "string"}
  }
}`)

	citationsInput = json.RawMessage(`{
  "type": "object",
  "properties": {
    "search_results": {"description": "Search results to cite"},
    "style": {"type": "string", "enum": ["chicago", "mla", "apa", "academic"], "default": "academic"}
  },
  "required": ["search_results"]
}`)

	citationsOutput = json.RawMessage(`{
  "type": "object",
  "properties": {
    "total_citations": {"type": "integer"},
    "citations": {"type": "array", "items": {"type": "object"}},
    "bibliography": {"type": "array", "items": {"type": "string"}},
    "citation_style": {"type": "string"}
  }
}`)
)
