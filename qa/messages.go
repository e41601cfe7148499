package qa

import (
	"fmt"
	"strings"
)

const noResultsMessage = "I couldn't find relevant information in the documents you have access to. " +
	"Please try rephrasing your question."

func refusalMessage(mentioned, allowed []string) string {
	return fmt.Sprintf("I don't have access to information about %s. "+
		"I can only search within the documents you have access to: %s. "+
		"Please ask questions about the companies I have access to.",
		strings.Join(mentioned, ", "), strings.Join(allowed, ", "))
}

func belowThresholdMessage(allowed []string, threshold float64) string {
	return fmt.Sprintf("I couldn't find highly relevant information in the documents you have access to (%s). "+
		"The search results didn't meet the relevance threshold (minimum similarity: %.2f). "+
		"Please try rephrasing your question or asking about topics that might be in your accessible documents.",
		strings.Join(allowed, ", "), threshold)
}
