// Package form holds the in-memory model of a form definition: a tree of
// data-collection items with their enable conditions, autofill rules,
// bounds and initial values.
package form

import (
	"fmt"
	"strings"
)

// Kind is the closed set of item kinds.
type Kind string

const (
	KindGroup       Kind = "GROUP"
	KindDisplay     Kind = "DISPLAY"
	KindString      Kind = "STRING"
	KindInteger     Kind = "INTEGER"
	KindCurrency    Kind = "CURRENCY"
	KindDate        Kind = "DATE"
	KindTimeOfDay   Kind = "TIME_OF_DAY"
	KindBoolean     Kind = "BOOLEAN"
	KindChoice      Kind = "CHOICE"
	KindOpenChoice  Kind = "OPEN_CHOICE"
	KindImage       Kind = "IMAGE"
	KindFile        Kind = "FILE"
	KindObject      Kind = "OBJECT"
	KindGeolocation Kind = "GEOLOCATION"
)

// Traits describes which item fields are meaningful for a kind.
type Traits struct {
	Children bool // may contain child items
	Answer   bool // carries an answer value
	Numeric  bool // answer is a number
	Options  bool // accepts pickListOptions
	Bounds   bool // accepts min/max bounds
}

var kindTraits = map[Kind]Traits{
	KindGroup:       {Children: true},
	KindDisplay:     {},
	KindString:      {Answer: true},
	KindInteger:     {Answer: true, Numeric: true, Bounds: true},
	KindCurrency:    {Answer: true, Numeric: true, Bounds: true},
	KindDate:        {Answer: true, Bounds: true},
	KindTimeOfDay:   {Answer: true, Bounds: true},
	KindBoolean:     {Answer: true},
	KindChoice:      {Answer: true, Options: true},
	KindOpenChoice:  {Answer: true, Options: true},
	KindImage:       {Answer: true},
	KindFile:        {Answer: true},
	KindObject:      {Answer: true},
	KindGeolocation: {Answer: true},
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindGroup, KindDisplay, KindString, KindInteger, KindCurrency, KindDate, KindTimeOfDay,
		KindBoolean, KindChoice, KindOpenChoice, KindImage, KindFile, KindObject, KindGeolocation,
	}
}

// Traits returns the trait row for k. ok is false for unknown kinds.
func (k Kind) Traits() (t Traits, ok bool) {
	t, ok = kindTraits[k]
	return t, ok
}

// Valid reports whether k is one of the closed set of kinds.
func (k Kind) Valid() bool {
	_, ok := kindTraits[k]
	return ok
}

// Operator compares a condition's question answer against its comparand.
type Operator string

const (
	OpEqual            Operator = "EQUAL"
	OpNotEqual         Operator = "NOT_EQUAL"
	OpGreaterThan      Operator = "GREATER_THAN"
	OpGreaterThanEqual Operator = "GREATER_THAN_EQUAL"
	OpLessThan         Operator = "LESS_THAN"
	OpLessThanEqual    Operator = "LESS_THAN_EQUAL"
	OpExists           Operator = "EXISTS"
	OpIncludes         Operator = "INCLUDES"
	OpIn               Operator = "IN"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanEqual, OpLessThan,
		OpLessThanEqual, OpExists, OpIncludes, OpIn:
		return true
	}
	return false
}

// Behavior combines a list of conditions. The zero value means ALL.
type Behavior string

const (
	BehaviorAll Behavior = "ALL"
	BehaviorAny Behavior = "ANY"
)

// UnmarshalText accepts ALL/ANY and the AND/OR spellings.
func (b *Behavior) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "", "ALL", "AND":
		*b = BehaviorAll
	case "ANY", "OR":
		*b = BehaviorAny
	default:
		return fmt.Errorf("unknown behavior %q", text)
	}
	return nil
}

// InitialBehavior controls when an initial value is applied.
type InitialBehavior string

const (
	InitialAlways  InitialBehavior = "ALWAYS"
	InitialIfEmpty InitialBehavior = "IF_EMPTY"
)

// DataCollectedAbout names the household member an item's data concerns.
// The empty value means the item always applies.
type DataCollectedAbout string

const (
	AboutNone         DataCollectedAbout = ""
	AboutAllClients   DataCollectedAbout = "ALL_CLIENTS"
	AboutHoH          DataCollectedAbout = "HOH"
	AboutHoHAndAdults DataCollectedAbout = "HOH_AND_ADULTS"
	AboutVeteranHoH   DataCollectedAbout = "VETERAN_HOH"
	AboutHousehold    DataCollectedAbout = "HOUSEHOLD"
)

// Valid reports whether d is a known tag or empty.
func (d DataCollectedAbout) Valid() bool {
	switch d {
	case AboutNone, AboutAllClients, AboutHoH, AboutHoHAndAdults, AboutVeteranHoH, AboutHousehold:
		return true
	}
	return false
}

// Definition is the root of a form schema.
type Definition struct {
	ID        string         `json:"id"`
	Title     string         `json:"title,omitempty"`
	Role      string         `json:"role,omitempty"`
	Status    string         `json:"status,omitempty"`
	Constants map[string]any `json:"constants,omitempty"`
	Items     []*Item        `json:"item"`
}

// Item is one node in the item tree.
type Item struct {
	LinkID             string             `json:"linkId"`
	Kind               Kind               `json:"kind"`
	Label              string             `json:"label,omitempty"`
	Items              []*Item            `json:"item,omitempty"`
	EnableWhen         []Condition        `json:"enableWhen,omitempty"`
	EnableBehavior     Behavior           `json:"enableBehavior,omitempty"`
	AutofillValues     []AutofillRule     `json:"autofillValues,omitempty"`
	Bounds             *Bounds            `json:"bounds,omitempty"`
	Initial            *Initial           `json:"initial,omitempty"`
	PickListOptions    []Option           `json:"pickListOptions,omitempty"`
	DataCollectedAbout DataCollectedAbout `json:"dataCollectedAbout,omitempty"`
	Required           bool               `json:"required,omitempty"`
	ReadOnly           bool               `json:"readOnly,omitempty"`
}

// Condition compares the answer to Question against exactly one comparand:
// a literal Answer, the answer to AnswerLinkID, or AnswerExpression.
// EXISTS compares presence of an answer against a boolean (default true).
type Condition struct {
	Question         string   `json:"question"`
	Operator         Operator `json:"operator"`
	Answer           any      `json:"answer,omitempty"`
	AnswerLinkID     string   `json:"answerLinkId,omitempty"`
	AnswerExpression string   `json:"answerExpression,omitempty"`
}

// AutofillRule produces a value for its item when AutofillWhen matches.
// A rule with no conditions always matches.
type AutofillRule struct {
	ValueExpression  string      `json:"valueExpression,omitempty"`
	Value            any         `json:"value,omitempty"`
	ValueLinkID      string      `json:"valueLinkId,omitempty"`
	AutofillWhen     []Condition `json:"autofillWhen,omitempty"`
	AutofillBehavior Behavior    `json:"autofillBehavior,omitempty"`
	AutofillReadonly bool        `json:"autofillReadonly,omitempty"`
}

// Bounds constrains an item's answer.
type Bounds struct {
	Min *BoundValue `json:"min,omitempty"`
	Max *BoundValue `json:"max,omitempty"`
}

// BoundValue is a literal, an expression or another item's answer.
type BoundValue struct {
	Value      any    `json:"value,omitempty"`
	Expression string `json:"expression,omitempty"`
	LinkID     string `json:"linkId,omitempty"`
}

// Initial supplies a starting value for an item.
type Initial struct {
	Value      any             `json:"value,omitempty"`
	Expression string          `json:"expression,omitempty"`
	LinkID     string          `json:"linkId,omitempty"`
	Behavior   InitialBehavior `json:"behavior,omitempty"`
}

// EffectiveBehavior returns the behavior, defaulting to ALWAYS.
func (in *Initial) EffectiveBehavior() InitialBehavior {
	if in.Behavior == "" {
		return InitialAlways
	}
	return in.Behavior
}

// Option is one entry in a pick list.
type Option struct {
	Code       string `json:"code"`
	Label      string `json:"label,omitempty"`
	HelperText string `json:"helperText,omitempty"`
}

// Traits returns the trait row for the item's kind.
func (it *Item) Traits() Traits {
	t, _ := it.Kind.Traits()
	return t
}

// DisplayLabel returns the label, falling back to the linkId.
func (it *Item) DisplayLabel() string {
	if it.Label != "" {
		return it.Label
	}
	return it.LinkID
}
