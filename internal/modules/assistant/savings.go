package assistant

// Estimated seconds a user would have spent doing each tool's job by hand.
var secondsSavedByTool = map[string]int{
	ToolSearchCorrespondences:    120,
	ToolGetCorrespondenceDetails: 60,
	ToolCreateInbound:            300,
	ToolCreateOutbound:           300,
	ToolSearchMeetings:           90,
	ToolGetMeetingDetails:        45,
	ToolCreateMeeting:            240,
}

const defaultSecondsSaved = 30

// SecondsSaved returns the estimate for one execution of the named tool.
func SecondsSaved(name string) int {
	if s, ok := secondsSavedByTool[name]; ok {
		return s
	}
	return defaultSecondsSaved
}
