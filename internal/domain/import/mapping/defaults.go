package mapping

import (
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
)

// headerAliases are exact normalized header names recognized per field when
// the header does not literally equal the field name. Order matters: the
// first alias present in the table wins.
var headerAliases = map[Field][]string{
	FieldDate:      {"date", "trade date", "transaction date", "settlement date", "activity date", "run date"},
	FieldType:      {"type", "activity type", "action", "transaction type", "activity", "description of transaction"},
	FieldSymbol:    {"symbol", "ticker", "instrument", "security", "isin"},
	FieldQuantity:  {"quantity", "shares", "units", "qty", "no. of shares"},
	FieldUnitPrice: {"unitprice", "unit price", "price", "share price", "price per share"},
	FieldAmount:    {"amount", "total", "total amount", "net amount", "value", "proceeds"},
	FieldFee:       {"fee", "fees", "commission", "charges"},
	FieldCurrency:  {"currency", "ccy", "currency code"},
	FieldFxRate:    {"fxrate", "fx rate", "exchange rate", "rate"},
	FieldAccount:   {"account", "account id", "account number", "portfolio"},
	FieldComment:   {"comment", "description", "memo", "notes", "details"},
}

// defaultTypePrefix is one entry of the smart-default activity table.
type defaultTypePrefix struct {
	prefix string
	t      activity.Type
}

// defaultTypePrefixes map common broker vocabulary onto canonical types when
// no explicit mapping claims the token. Declaration order is the precedence
// order: the first prefix the token starts with wins, so longer and more
// specific entries sit above their generic stems.
var defaultTypePrefixes = []defaultTypePrefix{
	{"TRANSFER IN", activity.TransferIn},
	{"TRANSFER_IN", activity.TransferIn},
	{"TRANSFER OUT", activity.TransferOut},
	{"TRANSFER_OUT", activity.TransferOut},
	{"REINVEST", activity.Dividend},
	{"DIVIDEND", activity.Dividend},
	{"DIV", activity.Dividend},
	{"INTEREST", activity.Interest},
	{"INT", activity.Interest},
	{"BUY", activity.Buy},
	{"BOUGHT", activity.Buy},
	{"PURCHASE", activity.Buy},
	{"ACQUIRE", activity.Buy},
	{"SELL", activity.Sell},
	{"SOLD", activity.Sell},
	{"SALE", activity.Sell},
	{"DEPOSIT", activity.Deposit},
	{"CONTRIBUTION", activity.Deposit},
	{"RECEIVE", activity.Deposit},
	{"WITHDRAWAL", activity.Withdrawal},
	{"WITHDRAW", activity.Withdrawal},
	{"DISTRIBUTION", activity.Withdrawal},
	{"FEE", activity.Fee},
	{"COMMISSION", activity.Fee},
	{"MGMT", activity.Fee},
	{"TAX", activity.Tax},
	{"WITHHOLDING", activity.Tax},
	{"SPLIT", activity.Split},
	{"STOCK SPLIT", activity.Split},
}

// typeKeywords power the last-resort scan: when a token matches nothing by
// prefix, an Aho-Corasick pass looks for these keywords anywhere inside it
// (brokers love "CASH DIV ON 25 SHS AAPL"). Order is precedence.
var typeKeywords = []struct {
	keyword string
	t       activity.Type
}{
	{"REINVEST", activity.Dividend},
	{"DIVIDEND", activity.Dividend},
	{"INTEREST", activity.Interest},
	{"WITHHOLDING", activity.Tax},
	{"SPLIT", activity.Split},
	{"BOUGHT", activity.Buy},
	{"PURCHASE", activity.Buy},
	{"SOLD", activity.Sell},
	{"DEPOSIT", activity.Deposit},
	{"WITHDRAW", activity.Withdrawal},
	{"COMMISSION", activity.Fee},
	{" FEE", activity.Fee},
	{" TAX", activity.Tax},
	{" DIV ", activity.Dividend},
}

// keywordMatcher is built once; ahocorasick matchers are immutable and safe
// for concurrent use.
var keywordMatcher = func() *ahocorasick.Matcher {
	patterns := make([][]byte, len(typeKeywords))
	for i, kw := range typeKeywords {
		patterns[i] = []byte(kw.keyword)
	}
	return ahocorasick.NewMatcher(patterns)
}()

// matchTypeKeyword scans token for any known keyword and returns the type of
// the highest-precedence hit.
func matchTypeKeyword(token string) (activity.Type, bool) {
	hits := keywordMatcher.Match([]byte(strings.ToUpper(token)))
	if len(hits) == 0 {
		return "", false
	}
	best := len(typeKeywords)
	for _, h := range hits {
		if h < best {
			best = h
		}
	}
	return typeKeywords[best].t, true
}
