// Package domain contains core concepts of the chat relay.
// This file defines participant credentials and profiles.
// No runtime, network, or UI logic should be added here.
package domain

// Credential is presented at every handshake.
type Credential struct {
	Username string `validate:"required"`
	Token    string `validate:"required"`
}

// Profile is the public view of an account.
type Profile struct {
	ID             string
	Username       string
	ProfilePicture []byte
}
