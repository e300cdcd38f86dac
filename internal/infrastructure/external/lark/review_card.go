package lark

import (
	"fmt"
	"strings"

	"github.com/garyjia/autoclaim/internal/domain/entity"
)

// buildReviewCard builds the interactive card for a Needs Review claim
func buildReviewCard(claim *entity.Claim, consoleURL string) map[string]interface{} {
	elements := []interface{}{
		map[string]interface{}{
			"tag": "div",
			"fields": []map[string]interface{}{
				shortField("Employee", claim.UserID),
				shortField("Type", string(claim.Type)),
				shortField("Billed", fmt.Sprintf("$%.2f", claim.Details.TotalAmount)),
				shortField("Eligible", fmt.Sprintf("$%.2f", claim.EligibleAmount)),
				shortField("Provider", claim.Details.Provider),
				shortField("Period", strings.Join(claim.Months, ", ")),
			},
		},
		map[string]interface{}{
			"tag": "hr",
		},
		map[string]interface{}{
			"tag": "div",
			"text": map[string]interface{}{
				"tag":     "lark_md",
				"content": "**Assessment**\n" + claim.Reasoning,
			},
		},
	}

	if consoleURL != "" {
		elements = append(elements, map[string]interface{}{
			"tag": "action",
			"actions": []map[string]interface{}{
				{
					"tag":  "button",
					"type": "primary",
					"url":  consoleURL,
					"text": map[string]interface{}{
						"tag":     "plain_text",
						"content": "Open admin console",
					},
				},
			},
		})
	}

	elements = append(elements, map[string]interface{}{
		"tag": "note",
		"elements": []map[string]interface{}{
			{
				"tag":     "plain_text",
				"content": fmt.Sprintf("Claim %s, submitted %s", claim.ID, claim.SubmittedAt.Format("2006-01-02 15:04")),
			},
		},
	})

	return map[string]interface{}{
		"config": map[string]interface{}{
			"wide_screen_mode": true,
		},
		"header": map[string]interface{}{
			"template": "orange",
			"title": map[string]interface{}{
				"tag":     "plain_text",
				"content": "Claim needs review",
			},
		},
		"elements": elements,
	}
}

func shortField(label, value string) map[string]interface{} {
	return map[string]interface{}{
		"is_short": true,
		"text": map[string]interface{}{
			"tag":     "lark_md",
			"content": fmt.Sprintf("**%s**\n%s", label, value),
		},
	}
}
