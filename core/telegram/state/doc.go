// Package state holds in-progress lead sessions keyed by Telegram user id.
//
// A Session moves through the form steps strictly forward. The Store keeps
// sessions in memory with a sliding TTL and offers a per-user lock so that
// events of one user are handled one at a time.
package state
