package model

// MetaDataItem is a named value inside a metadata group.
type MetaDataItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// metaDataModel keeps groups and their items in insertion order.
type metaDataModel struct {
	groups []string
	items  map[string][]MetaDataItem
}

func newMetaDataModel() *metaDataModel {
	return &metaDataModel{items: make(map[string][]MetaDataItem)}
}

// add inserts or updates an item within a group.
func (m *metaDataModel) add(group, name, value string) MetaDataItem {
	if _, ok := m.items[group]; !ok {
		m.groups = append(m.groups, group)
	}
	item := MetaDataItem{Name: name, Value: value}
	for i, existing := range m.items[group] {
		if existing.Name == name {
			m.items[group][i] = item
			return item
		}
	}
	m.items[group] = append(m.items[group], item)
	return item
}

func (m *metaDataModel) groupNames() []string {
	return append([]string(nil), m.groups...)
}

func (m *metaDataModel) groupItems(group string) []MetaDataItem {
	return append([]MetaDataItem(nil), m.items[group]...)
}
