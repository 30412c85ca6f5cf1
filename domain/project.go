package domain

import (
	"strings"
	"time"
)

// Project groups tasks; its creator and assigned users may see it.
type Project struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	CreatedBy     string    `json:"created_by"`
	AssignedUsers []string  `json:"assigned_users"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *Project) IsCreator(userID string) bool {
	return p != nil && userID != "" && p.CreatedBy == userID
}

func (p *Project) HasMember(userID string) bool {
	if p == nil || userID == "" {
		return false
	}
	for _, id := range p.AssignedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// AssignUsers merges ids into the member set and returns the ids that were not members yet.
func (p *Project) AssignUsers(ids []string) []string {
	var added []string
	for _, id := range UniqueIDs(ids) {
		if p.HasMember(id) {
			continue
		}
		p.AssignedUsers = append(p.AssignedUsers, id)
		added = append(added, id)
	}
	return added
}

// UniqueIDs trims ids, drops empty ones and removes duplicates keeping first occurrence order.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
