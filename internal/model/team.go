package model

import "time"

// TeamStatus はチームの募集状態を表す。
type TeamStatus string

const (
	TeamStatusLookingForMembers TeamStatus = "Looking for members"
	TeamStatusAlmostFull        TeamStatus = "Almost full"
	TeamStatusFull              TeamStatus = "Full"
)

// Team はハッカソン等のチームを表す。
// Membersには常にLeaderIDが含まれる。
type Team struct {
	ID           string
	Name         string
	Description  string
	Category     string
	LeaderID     string
	Members      []string
	MaxMembers   int
	Status       TeamStatus // 永続化される状態（Full / Looking for members の2値）
	SkillsNeeded []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasMember は指定ユーザーがメンバーかどうかを返す。
func (t *Team) HasMember(userID string) bool {
	for _, m := range t.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// IsFull は定員に達しているかどうかを返す。
func (t *Team) IsFull() bool {
	return len(t.Members) >= t.MaxMembers
}

// DisplayStatus は表示用の募集状態を返す。
func (t *Team) DisplayStatus() TeamStatus {
	return DisplayTeamStatus(len(t.Members), t.MaxMembers)
}

// PersistedTeamStatus はjoin/leave時に書き込む2値の状態を返す。
// 人数が定員と一致した場合のみFullになる。
func PersistedTeamStatus(memberCount, maxMembers int) TeamStatus {
	if memberCount >= maxMembers {
		return TeamStatusFull
	}
	return TeamStatusLookingForMembers
}

// DisplayTeamStatus は人数と定員の比率から表示用の状態を算出する。
// 80%以上で Almost full、定員以上で Full。
func DisplayTeamStatus(memberCount, maxMembers int) TeamStatus {
	if memberCount >= maxMembers {
		return TeamStatusFull
	}
	// memberCount >= 0.8 * maxMembers を整数演算で判定する
	if memberCount > 0 && memberCount*5 >= maxMembers*4 {
		return TeamStatusAlmostFull
	}
	return TeamStatusLookingForMembers
}

// TeamSearch はチーム一覧の検索条件。
type TeamSearch struct {
	Term     string // name, description の部分一致
	Category string
}

// TeamWithLeader は一覧表示用にリーダー情報を付加したチーム。
// リーダーが見つからない場合はLeaderがnil。
type TeamWithLeader struct {
	Team
	Leader *User
}
