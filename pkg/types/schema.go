package types

// FieldType 输出字段类型。
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeInteger FieldType = "integer"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeArray   FieldType = "array"
	FieldTypeObject  FieldType = "object"
)

// SchemaField 结构化输出契约中的一个命名字段。
type SchemaField struct {
	Name        string    `yaml:"name" json:"name"`
	Type        FieldType `yaml:"type" json:"type"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool      `yaml:"required,omitempty" json:"required,omitempty"`
}

// OutputSchema 任务声明的结构化输出契约（有序字段集合）。
type OutputSchema struct {
	Fields []SchemaField `yaml:"fields" json:"fields"`
}

// Field 按名称查找字段定义。
func (s *OutputSchema) Field(name string) (*SchemaField, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// RequiredFields 返回所有必填字段名。
func (s *OutputSchema) RequiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}
