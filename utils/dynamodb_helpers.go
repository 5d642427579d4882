package utils

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ExtractInt64 parses a numeric attribute, returning 0 when it is missing or malformed.
func ExtractInt64(item map[string]types.AttributeValue, field string) int64 {
	if attr, ok := item[field]; ok {
		if v, ok := attr.(*types.AttributeValueMemberN); ok {
			n, err := strconv.ParseInt(v.Value, 10, 64)
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// ExtractStringList collects the string elements of a list attribute.
func ExtractStringList(item map[string]types.AttributeValue, field string) []string {
	var out []string
	if attr, ok := item[field]; ok {
		if list, ok := attr.(*types.AttributeValueMemberL); ok {
			for _, el := range list.Value {
				if s, ok := el.(*types.AttributeValueMemberS); ok {
					out = append(out, s.Value)
				}
			}
		}
	}
	return out
}

// Contains reports whether the list attribute holds value.
func Contains(item map[string]types.AttributeValue, field, value string) bool {
	for _, s := range ExtractStringList(item, field) {
		if s == value {
			return true
		}
	}
	return false
}
