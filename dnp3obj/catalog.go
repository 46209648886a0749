package dnp3obj

// Group identifies a DNP3 object group (spec.md §4.1 "Object catalog").
type Group byte

const (
	GroupBinaryInput   Group = 1
	GroupBinaryOutput  Group = 10
	GroupBinaryCommand Group = 12
	GroupCounter       Group = 20
	GroupAnalogInput   Group = 30
	GroupAnalogOutput  Group = 41
	GroupTime          Group = 50
	GroupClassData     Group = 60
	GroupIIN           Group = 80
	GroupDeviceAttr    Group = 0
)

// Variation identifies the on-wire layout of a Group (spec.md §4.1).
type Variation byte

// Layout describes the fixed/variable byte shape of one (Group, Variation)
// pair, driving both encode and decode. This is the static dispatch table
// the design notes call for in place of reflection-driven instantiation
// (GroupCategory.newObjectInstance) -- see DESIGN.md.
type Layout struct {
	Group       Group
	Variation   Variation
	HasFlags    bool
	HasTime     bool // CP56Time2a (7 bytes) appended after the value
	ValueBytes  int  // fixed-size value payload, 0 for bit-packed/variable
	Description string
}

// catalog is the (group, variation) -> Layout dispatch table.
var catalog = map[[2]byte]Layout{
	{byte(GroupBinaryInput), 1}:   {GroupBinaryInput, 1, false, false, 0, "packed binary input"},
	{byte(GroupBinaryInput), 2}:   {GroupBinaryInput, 2, true, false, 1, "binary input with flags"},
	{byte(GroupBinaryOutput), 1}:  {GroupBinaryOutput, 1, false, false, 0, "packed binary output"},
	{byte(GroupBinaryOutput), 2}:  {GroupBinaryOutput, 2, true, false, 1, "binary output with flags"},
	{byte(GroupBinaryCommand), 1}: {GroupBinaryCommand, 1, false, false, 1, "CROB control relay output block"},
	{byte(GroupCounter), 1}:       {GroupCounter, 1, true, false, 4, "32-bit counter with flags"},
	{byte(GroupCounter), 2}:       {GroupCounter, 2, true, false, 2, "16-bit counter with flags"},
	{byte(GroupAnalogInput), 1}:   {GroupAnalogInput, 1, true, false, 4, "32-bit analog input with flags"},
	{byte(GroupAnalogInput), 2}:   {GroupAnalogInput, 2, true, false, 2, "16-bit analog input with flags"},
	{byte(GroupAnalogInput), 3}:   {GroupAnalogInput, 3, false, false, 4, "32-bit analog input without flags"},
	{byte(GroupAnalogInput), 4}:   {GroupAnalogInput, 4, false, false, 2, "16-bit analog input without flags"},
	{byte(GroupAnalogInput), 5}:   {GroupAnalogInput, 5, true, false, 4, "32-bit float analog input with flags"},
	{byte(GroupAnalogOutput), 1}:  {GroupAnalogOutput, 1, true, false, 4, "32-bit analog output status"},
	{byte(GroupAnalogOutput), 2}:  {GroupAnalogOutput, 2, true, false, 2, "16-bit analog output status"},
	{byte(GroupClassData), 1}:     {GroupClassData, 1, false, false, 0, "class 0 data poll"},
	{byte(GroupClassData), 2}:     {GroupClassData, 2, false, false, 0, "class 1 data poll"},
	{byte(GroupClassData), 3}:     {GroupClassData, 3, false, false, 0, "class 2 data poll"},
	{byte(GroupClassData), 4}:     {GroupClassData, 4, false, false, 0, "class 3 data poll"},
}

// LookupLayout returns the Layout for (group, variation) and whether it is
// known. DecodeFragment keeps an unknown pair's bytes as one opaque
// Instance with Unsupported set rather than returning an error.
func LookupLayout(group Group, variation Variation) (Layout, bool) {
	l, ok := catalog[[2]byte{byte(group), byte(variation)}]
	return l, ok
}
