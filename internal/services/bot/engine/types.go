package engine

// Params carries the per-user engine tuning forwarded on every request.
type Params struct {
	MinTime    int    `json:"min_time"`
	MaxTime    int    `json:"max_time"`
	Threads    int    `json:"threads"`
	Depth      int    `json:"depth"`
	RAMHash    int    `json:"ram_hash"`
	SkillLevel int    `json:"skill_level"`
	Elo        int    `json:"elo"`
	Colors     string `json:"colors,omitempty"`
	WithCoords bool   `json:"with_coords"`
	Size       int    `json:"size"`
}

// MoveRequest asks the engine to apply a player move and answer with its
// own. An empty UserMove asks for the opening engine move when the player
// has black.
type MoveRequest struct {
	UserMove    string `json:"user_move,omitempty"`
	PrevMoves   string `json:"prev_moves"`
	Orientation string `json:"orientation"`
	Params      Params `json:"params"`
}

// MoveReply is the engine's answer to an accepted move.
type MoveReply struct {
	EngineMove  string `json:"engine_move"`
	PrevMoves   string `json:"prev_moves"`
	FEN         string `json:"fen"`
	CheckSquare string `json:"check"`
	EndType     string `json:"end_type"`
	IsEnd       bool   `json:"is_end"`
}

// Evaluation is the engine's judgement of a position.
type Evaluation struct {
	EndType string `json:"end_type"`
	Value   int    `json:"value"`
	IsEnd   bool   `json:"is_end"`
	WhoWin  string `json:"who_win"`
	WDL     []int  `json:"wdl"`
}

// Evaluation end types reported by the engine.
const (
	EndTypeCheckmate = "checkmate"
	EndTypeCentipawn = "cp"
)

// BoardRequest asks for a rendered board image.
type BoardRequest struct {
	FEN         string
	LastMove    string
	CheckSquare string
	Orientation string
	Params      Params
}

// Bound is an inclusive allowed range for one settings key.
type Bound struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Limits maps settings keys to their allowed ranges.
type Limits map[string]Bound

// Defaults carries the engine's recommended settings for new users.
type Defaults struct {
	MinTime    int    `json:"min_time"`
	MaxTime    int    `json:"max_time"`
	Threads    int    `json:"threads"`
	Depth      int    `json:"depth"`
	RAMHash    int    `json:"ram_hash"`
	SkillLevel int    `json:"skill_level"`
	Elo        int    `json:"elo"`
	Colors     string `json:"colors"`
	WithCoords bool   `json:"with_coords"`
	Size       int    `json:"size"`
}
