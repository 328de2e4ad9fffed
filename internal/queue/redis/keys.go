package redis

import (
	"fmt"
)

func prefixedName(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", prefix, key)
}

func pendingListName(prefix, queueName string) string {
	return prefixedName(prefix, fmt.Sprintf("%s:pending", queueName))
}

func messagesHashName(prefix, queueName string) string {
	return prefixedName(prefix, fmt.Sprintf("%s:messages", queueName))
}

func scheduledSetName(prefix, queueName string) string {
	return prefixedName(prefix, fmt.Sprintf("%s:scheduled", queueName))
}

func deadLetterListName(prefix, queueName string) string {
	return prefixedName(prefix, fmt.Sprintf("%s:deadletter", queueName))
}

func deadLetterReasonsHashName(prefix, queueName string) string {
	return prefixedName(prefix, fmt.Sprintf("%s:deadletter:reasons", queueName))
}

func consumersSetName(prefix, queueName string) string {
	return prefixedName(prefix, fmt.Sprintf("%s:consumers", queueName))
}

func activeListName(prefix, queueName, consumerID string) string {
	return prefixedName(
		prefix,
		fmt.Sprintf("%s:%s:active", queueName, consumerID),
	)
}
