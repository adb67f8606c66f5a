package assistant

import (
	"fmt"
	"strings"
	"time"
)

const (
	chatTemperature    = 0.7
	receiptTemperature = 0.3
)

const financePrompt = `You are a helpful financial assistant for ShardPay.
Provide concise, actionable financial advice. If the query is not financial, politely decline.
Focus on: budgeting, saving, investments, and personal finance. Your responses should have
no * characters in them. Ask follow up questions and keep the conversations interesting
Current date: %s

User: `

const receiptPrompt = `Parse this receipt and split the bill fairly based on who had what.
Receipt: %s

People splitting the bill: %s

Return a JSON object with this structure:
{
  "totalAmount": number,
  "participants": [
    {
      "name": string,
      "share": number,
      "reasoning": string
    }
  ]
}

Rules:
- If someone had multiple items/rounds, their share should reflect that (e.g., if Sule had 2 drinks and others had 1, Sule's share should be 2)
- The total of all shares should equal the total number of items/rounds
- If the receipt mentions specific items for specific people, account for that
- If the receipt mentions a tip or tax, include it in the total amount
- If any information is unclear, make reasonable assumptions and explain in the reasoning
`

func buildChatPrompt(question string, now time.Time) string {
	return fmt.Sprintf(financePrompt, now.Format(time.DateOnly)) + question
}

func buildReceiptPrompt(receipt string, names []string) string {
	return fmt.Sprintf(receiptPrompt, receipt, strings.Join(names, ", "))
}
