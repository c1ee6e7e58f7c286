package model

import "time"

// The registry knows exactly two roles. Admin governs who may hold the issuer
// role; issuer governs who may register participants and issue/revoke certificates.
const (
	RoleAdmin  = "admin"
	RoleIssuer = "issuer"
)

// RoleGrant records one (role, address) assignment.
type RoleGrant struct {
	ObjectType string    `json:"objectType"` // "RoleGrant"
	Role       string    `json:"role"`
	Address    string    `json:"address"`
	GrantedBy  string    `json:"grantedBy"`
	GrantedAt  time.Time `json:"grantedAt"`
}
