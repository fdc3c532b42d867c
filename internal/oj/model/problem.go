// Package model defines the question catalogue and judge submission types.
package model

// Problem is one catalogue entry. Header is the template shown to users;
// Preamble and Harness are glued around the submitted code at judge time.
type Problem struct {
	Number   string `json:"number"`
	Title    string `json:"title"`
	Star     string `json:"star"`
	Desc     string `json:"desc"`
	Header   string `json:"header"`
	Preamble string `json:"preamble,omitempty"`
	Harness  string `json:"-"`
	// CPULimit is in seconds, MemLimit in MiB.
	CPULimit int `json:"cpuLimit"`
	MemLimit int `json:"memLimit"`
}

// ProblemSummary is the catalogue list view.
type ProblemSummary struct {
	Number   string `json:"number"`
	Title    string `json:"title"`
	Star     string `json:"star"`
	CPULimit int    `json:"cpuLimit"`
	MemLimit int    `json:"memLimit"`
}

// Summary returns the list view of p.
func (p *Problem) Summary() ProblemSummary {
	return ProblemSummary{Number: p.Number, Title: p.Title, Star: p.Star, CPULimit: p.CPULimit, MemLimit: p.MemLimit}
}

// Submission is the body of POST /judge/:number.
type Submission struct {
	Code  string `json:"code"`
	Input string `json:"input"`
}

// JudgeEvent is published after a worker answered a submission.
type JudgeEvent struct {
	Problem   string `json:"problem"`
	Machine   int    `json:"machine"`
	Addr      string `json:"addr"`
	Code      int    `json:"code"`
	Reason    string `json:"reason"`
	CreatedAt int64  `json:"created_at"`
}
