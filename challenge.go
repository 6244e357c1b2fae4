package main

// ChallengeParams is the server-issued challenge descriptor. It is
// immutable once decoded and shared read-only across all search workers.
// Optional wire fields decode to empty strings.
type ChallengeParams struct {
	ChallengeID      string `json:"challenge_id"`
	Day              int    `json:"day"`
	ChallengeNumber  int    `json:"challenge_number"`
	IssuedAt         string `json:"issued_at"`
	LatestSubmission string `json:"latest_submission"`
	Difficulty       string `json:"difficulty"`
	NoPreMine        string `json:"no_pre_mine"`
	NoPreMineHour    string `json:"no_pre_mine_hour"`
}

// ChallengeResponse wraps the /challenge endpoint payload. Code is one of
// "before", "active" or "after".
type ChallengeResponse struct {
	Code                  string           `json:"code"`
	Challenge             *ChallengeParams `json:"challenge"`
	MiningPeriodEnds      string           `json:"mining_period_ends"`
	MaxDay                int              `json:"max_day"`
	TotalChallenges       int              `json:"total_challenges"`
	CurrentDay            int              `json:"current_day"`
	NextChallengeStartsAt string           `json:"next_challenge_starts_at"`
	StartsAt              string           `json:"starts_at"`
}

// Seed material for the lookup table when the challenge carries no
// no-pre-mine token.
const defaultROMSeed = "default-seed"

func (c *ChallengeParams) romSeed() []byte {
	if c.NoPreMine != "" {
		return []byte(c.NoPreMine)
	}
	return []byte(defaultROMSeed)
}
