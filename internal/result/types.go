package result

// Record is one line of the results file: the full provenance of a single
// task evaluation, including what the first attempt produced before any
// replan or repair round touched it.
type Record struct {
	RunID            string `json:"run_id,omitempty"`
	TaskID           string `json:"task_id"`
	PlanFormat       string `json:"plan_format"`
	Plan             string `json:"plan"`
	Code             string `json:"code"`
	Passed           bool   `json:"passed"`
	Replanned        bool   `json:"replanned"`
	ReplanRoundsUsed int    `json:"replan_rounds_used"`
	Repaired         bool   `json:"repaired"`
	RepairRoundsUsed int    `json:"repair_rounds_used"`
	FirstCode        string `json:"first_code,omitempty"`
	FirstLogs        string `json:"first_logs,omitempty"`
	Logs             string `json:"logs,omitempty"`
	DurationS        int    `json:"duration_s"`
}
