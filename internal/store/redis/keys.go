package redis

import (
	"fmt"
	"strings"
)

const (
	// KeyPrefixChanges is the prefix of every change-feed channel
	KeyPrefixChanges = "shelf:changes:"
)

// ChangesChannel returns the pub/sub channel carrying changes of one owner's rows in table.
// Filtering by owner happens on the server: a subscriber only ever hears its own channel.
func ChangesChannel(table, ownerID string) string {
	return KeyPrefixChanges + table + ":" + ownerID
}

// ExtractOwnerID extracts the owner id from a change-feed channel name
func ExtractOwnerID(channel string) (string, error) {
	rest, ok := strings.CutPrefix(channel, KeyPrefixChanges)
	if !ok {
		return "", fmt.Errorf("invalid changes channel: %s", channel)
	}
	_, owner, ok := strings.Cut(rest, ":")
	if !ok || owner == "" {
		return "", fmt.Errorf("invalid changes channel: %s", channel)
	}
	return owner, nil
}
