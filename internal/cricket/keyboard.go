package cricket

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"
)

const (
	// CallbackPrefix is the prefix for all prediction game callback data
	CallbackPrefix = "cricket_"
)

// Callback actions.
const (
	ActionJoin    = "join"
	ActionPick    = "pick"
	ActionStake   = "stake"
	ActionConfirm = "confirm"
	ActionRefresh = "refresh"
	ActionLeave   = "leave"
)

// StakeButtons are the quick stake amounts offered on the panel.
var StakeButtons = []int64{10, 50, 100}

// EncodeCallback encodes an action and parameter into callback data.
func EncodeCallback(action string, param string) string {
	if param != "" {
		return fmt.Sprintf("%s%s_%s", CallbackPrefix, action, param)
	}
	return CallbackPrefix + action
}

// DecodeCallback decodes callback data into action and parameter.
// Parameters may themselves contain underscores (e.g. "2_runs").
func DecodeCallback(data string) (action string, param string) {
	data = strings.TrimPrefix(data, "\f")
	if !strings.HasPrefix(data, CallbackPrefix) {
		return "", ""
	}

	content := strings.TrimPrefix(data, CallbackPrefix)
	parts := strings.SplitN(content, "_", 2)
	action = parts[0]
	if len(parts) > 1 {
		param = parts[1]
	}
	return action, param
}

// JoinKeyboard offers a single button to join the given match.
func JoinKeyboard(matchID int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{{
		{Text: "🏏 Join match", Data: EncodeCallback(ActionJoin, strconv.FormatInt(matchID, 10))},
		{Text: "🔄 Refresh", Data: EncodeCallback(ActionRefresh, "")},
	}}
	return markup
}

// PredictionKeyboard builds the betting panel.
// Layout:
//   - Rows 1-3: one button per prediction type, two per row
//   - Row 4: stake buttons
//   - Row 5: [Confirm] [Leave]
//
// The currently selected category and stake are marked.
func PredictionKeyboard(selected Category, stake int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows [][]tele.InlineButton
	var row []tele.InlineButton
	for _, p := range predictionTypes {
		text := fmt.Sprintf("%s x%.1f", p.Label, p.Multiplier.Float())
		if p.Category == selected {
			text = "✅ " + text
		}
		row = append(row, tele.InlineButton{
			Text: text,
			Data: EncodeCallback(ActionPick, string(p.Category)),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	stakeRow := make([]tele.InlineButton, 0, len(StakeButtons))
	for _, amount := range StakeButtons {
		text := fmt.Sprintf("💰 %d", amount)
		if amount == stake {
			text = "✅ " + text
		}
		stakeRow = append(stakeRow, tele.InlineButton{
			Text: text,
			Data: EncodeCallback(ActionStake, strconv.FormatInt(amount, 10)),
		})
	}
	rows = append(rows, stakeRow)

	rows = append(rows, []tele.InlineButton{
		{Text: "🎯 Confirm", Data: EncodeCallback(ActionConfirm, "")},
		{Text: "🚪 Leave", Data: EncodeCallback(ActionLeave, "")},
	})

	markup.InlineKeyboard = rows
	return markup
}
