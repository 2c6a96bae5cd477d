// Package docdata stores the association records a document carries between
// sync cycles: which queries feed it, the layout of each query, the work item
// ids last written for each query, and the field values content controls are
// bound to. Each record is a separate part replaced by delete-then-add.
package docdata

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/docsync/internal/document"
	"github.com/dgallion1/docsync/internal/workitem"
)

const (
	PartQueries = "docsync/queries"
	PartFields  = "docsync/fields"
)

// LayoutPart is the part holding the layout name of query q.
func LayoutPart(q int) string { return fmt.Sprintf("docsync/query/%d/layout", q) }

// ItemsPart is the part holding the id snapshot of query q.
func ItemsPart(q int) string { return fmt.Sprintf("docsync/query/%d/items", q) }

// Parts is the part storage of a document.
type Parts interface {
	AddPart(name string, data []byte)
	DeletePart(name string)
	Part(name string) ([]byte, bool)
}

// QueryDef describes one query feeding a document.
type QueryDef struct {
	Index   int           `json:"index"`
	QueryID string        `json:"query_id"`
	Mode    workitem.Mode `json:"mode"`
	Layout  string        `json:"layout"`
}

type Store struct {
	parts Parts
}

func New(parts Parts) *Store {
	return &Store{parts: parts}
}

func (s *Store) replace(name string, data []byte) {
	s.parts.DeletePart(name)
	s.parts.AddPart(name, data)
}

// SaveQueries replaces the query definitions and the per-query layout parts.
func (s *Store) SaveQueries(defs []QueryDef) error {
	data, err := json.Marshal(defs)
	if err != nil {
		return fmt.Errorf("encode queries: %w", err)
	}
	s.replace(PartQueries, data)
	for _, d := range defs {
		s.SetLayout(d.Index, d.Layout)
	}
	return nil
}

// Queries returns the stored query definitions, or nil if none were saved.
func (s *Store) Queries() ([]QueryDef, error) {
	data, ok := s.parts.Part(PartQueries)
	if !ok {
		return nil, nil
	}
	var defs []QueryDef
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decode queries: %w", err)
	}
	return defs, nil
}

func (s *Store) SetLayout(q int, name string) {
	s.replace(LayoutPart(q), []byte(name))
}

func (s *Store) Layout(q int) (string, bool) {
	data, ok := s.parts.Part(LayoutPart(q))
	if !ok {
		return "", false
	}
	return string(data), true
}

// SetQueryItems records ids as the before state of query q.
func (s *Store) SetQueryItems(q int, ids []int) error {
	if ids == nil {
		ids = []int{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode items of query %d: %w", q, err)
	}
	s.replace(ItemsPart(q), data)
	return nil
}

// QueryItems returns the before state of query q. ok is false when the query
// has never been reconciled.
func (s *Store) QueryItems(q int) (ids []int, ok bool, err error) {
	data, found := s.parts.Part(ItemsPart(q))
	if !found {
		return nil, false, nil
	}
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, false, fmt.Errorf("decode items of query %d: %w", q, err)
	}
	return ids, true, nil
}

type xmlWorkItems struct {
	XMLName xml.Name      `xml:"WorkItems"`
	Items   []xmlWorkItem `xml:"WorkItem"`
}

type xmlWorkItem struct {
	ID     int        `xml:"id,attr"`
	Fields []xmlField `xml:"Field"`
}

type xmlField struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// SetFieldValues replaces the field value part with items.
func (s *Store) SetFieldValues(items []workitem.WorkItem) error {
	doc := xmlWorkItems{Items: make([]xmlWorkItem, 0, len(items))}
	for _, it := range items {
		x := xmlWorkItem{ID: it.ID}
		for _, f := range it.Fields {
			x.Fields = append(x.Fields, xmlField{Name: f.Name, Value: f.Value})
		}
		doc.Items = append(doc.Items, x)
	}
	data, err := xml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode field values: %w", err)
	}
	s.replace(PartFields, data)
	return nil
}

// FieldValues returns the stored values keyed by id and field name.
func (s *Store) FieldValues() (map[int]map[string]string, error) {
	out := make(map[int]map[string]string)
	data, ok := s.parts.Part(PartFields)
	if !ok {
		return out, nil
	}
	var doc xmlWorkItems
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode field values: %w", err)
	}
	for _, it := range doc.Items {
		fields := out[it.ID]
		if fields == nil {
			fields = make(map[string]string, len(it.Fields))
			out[it.ID] = fields
		}
		for _, f := range it.Fields {
			fields[f.Name] = f.Value
		}
	}
	return out, nil
}

// Resolver returns a binding resolver over the stored field values. A part
// that cannot be decoded resolves nothing.
func (s *Store) Resolver() document.Resolver {
	values, err := s.FieldValues()
	if err != nil {
		values = nil
	}
	return func(path string) (string, bool) {
		id, field, ok := ParseXPath(path)
		if !ok {
			return "", false
		}
		v, ok := values[id][field]
		return v, ok
	}
}

// XPath is the binding path of a field of work item id.
func XPath(id int, field string) string {
	return fmt.Sprintf("/WorkItems/WorkItem[@id='%d']/Field[@name='%s']", id, field)
}

var xpathRe = regexp.MustCompile(`^/WorkItems/WorkItem\[@id='(\d+)'\]/Field\[@name='([^']+)'\]$`)

// ParseXPath is the inverse of XPath.
func ParseXPath(path string) (id int, field string, ok bool) {
	m := xpathRe.FindStringSubmatch(path)
	if m == nil {
		return 0, "", false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return id, m[2], true
}

// Tag is the tag of a rich-text control holding field of work item id.
func Tag(field string, id int) string {
	return field + "-" + strconv.Itoa(id)
}

// ParseTag splits a "{field}-{id}" tag at its last dash.
func ParseTag(tag string) (field string, id int, ok bool) {
	i := strings.LastIndexByte(tag, '-')
	if i <= 0 || i == len(tag)-1 {
		return "", 0, false
	}
	digits := tag[i+1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", 0, false
		}
	}
	id, err := strconv.Atoi(digits)
	if err != nil {
		return "", 0, false
	}
	return tag[:i], id, true
}

// ControlItem returns the work item id a live control refers to, from its
// binding or, for rich-text controls, its tag.
func ControlItem(c *document.Control) (int, bool) {
	if c == nil {
		return 0, false
	}
	if c.Binding != "" {
		id, _, ok := ParseXPath(c.Binding)
		return id, ok
	}
	if c.Kind == document.KindRichText {
		_, id, ok := ParseTag(c.Tag)
		return id, ok
	}
	return 0, false
}
