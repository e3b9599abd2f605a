package emvqr

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BR Code (Pix) 태그
const (
	TagPayloadFormat      = "00"
	TagPointOfInitiation  = "01"
	TagMerchantAccount    = "26"
	TagMerchantCategory   = "52"
	TagTransactionCurr    = "53"
	TagTransactionAmount  = "54"
	TagCountryCode        = "58"
	TagMerchantName       = "59"
	TagMerchantCity       = "60"
	TagPostalCode         = "61"
	TagAdditionalData     = "62"
	TagCRC                = "63"
	subTagGUI             = "00"
	subTagKey             = "01"
	subTagDescription     = "02"
	subTagReferenceLabel  = "05"
	pixGUI                = "br.gov.bcb.pix"
	payloadFormatVersion  = "01"
	initiationSingleUse   = "12"
	initiationReusable    = "11"
	currencyBRL           = "986"
	countryBR             = "BR"
	defaultCategoryCode   = "0000"
	anonymousTxID         = "***"
	maxMerchantNameLength = 25
	maxMerchantCityLength = 15
	maxTxIDLength         = 25
	fieldHeaderLength     = 4
)

// Pix describes a static BR Code charge.
type Pix struct {
	Key          string
	Description  string
	MerchantName string
	MerchantCity string
	PostalCode   string
	Amount       decimal.Decimal
	TxID         string
	Reusable     bool
}

// BuildPix renders a BR Code payload terminated by its CRC field.
func BuildPix(p Pix) (string, error) {
	if strings.TrimSpace(p.Key) == "" {
		return "", fmt.Errorf("emvqr: pix key is required")
	}
	if p.Amount.IsNegative() {
		return "", fmt.Errorf("emvqr: negative amount %s", p.Amount)
	}
	if len(p.TxID) > maxTxIDLength {
		return "", fmt.Errorf("emvqr: txid longer than %d characters", maxTxIDLength)
	}

	account, err := Template(TagMerchantAccount,
		F(subTagGUI, pixGUI),
		F(subTagKey, p.Key),
		F(subTagDescription, fitDescription(p.Description, p.Key)),
	)
	if err != nil {
		return "", err
	}

	txid := p.TxID
	if txid == "" {
		txid = anonymousTxID
	}
	additional, err := Template(TagAdditionalData, F(subTagReferenceLabel, txid))
	if err != nil {
		return "", err
	}

	initiation := initiationSingleUse
	if p.Reusable {
		initiation = initiationReusable
	}

	var amount string
	if p.Amount.IsPositive() {
		amount = p.Amount.StringFixed(2)
	}

	body, err := Encode(
		F(TagPayloadFormat, payloadFormatVersion),
		F(TagPointOfInitiation, initiation),
		account,
		F(TagMerchantCategory, defaultCategoryCode),
		F(TagTransactionCurr, currencyBRL),
		F(TagTransactionAmount, amount),
		F(TagCountryCode, countryBR),
		F(TagMerchantName, clip(asciiFold(p.MerchantName), maxMerchantNameLength)),
		F(TagMerchantCity, clip(asciiFold(p.MerchantCity), maxMerchantCityLength)),
		F(TagPostalCode, p.PostalCode),
		additional,
	)
	if err != nil {
		return "", err
	}
	return AppendCRC(body), nil
}

// DecodePix validates the checksum and extracts the Pix fields.
func DecodePix(payload string) (*Pix, error) {
	if err := Validate(payload); err != nil {
		return nil, err
	}
	fields, err := Decode(payload)
	if err != nil {
		return nil, err
	}

	p := &Pix{}
	if v, _ := Lookup(fields, TagPointOfInitiation); v == initiationReusable {
		p.Reusable = true
	}
	if v, ok := Lookup(fields, TagMerchantAccount); ok {
		sub, err := Decode(v)
		if err != nil {
			return nil, fmt.Errorf("merchant account: %w", err)
		}
		if gui, _ := Lookup(sub, subTagGUI); !strings.EqualFold(gui, pixGUI) {
			return nil, fmt.Errorf("%w: unexpected GUI %q", ErrMalformedField, gui)
		}
		p.Key, _ = Lookup(sub, subTagKey)
		p.Description, _ = Lookup(sub, subTagDescription)
	}
	if v, ok := Lookup(fields, TagTransactionAmount); ok {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: amount %q", ErrMalformedField, v)
		}
		p.Amount = amount
	}
	p.MerchantName, _ = Lookup(fields, TagMerchantName)
	p.MerchantCity, _ = Lookup(fields, TagMerchantCity)
	p.PostalCode, _ = Lookup(fields, TagPostalCode)
	if v, ok := Lookup(fields, TagAdditionalData); ok {
		sub, err := Decode(v)
		if err != nil {
			return nil, fmt.Errorf("additional data: %w", err)
		}
		if txid, _ := Lookup(sub, subTagReferenceLabel); txid != anonymousTxID {
			p.TxID = txid
		}
	}
	return p, nil
}

// fitDescription은 설명을 ASCII로 정리하고 템플릿 26의 남은 공간에 맞게 자릅니다.
// 공간이 없으면 설명을 생략합니다.
func fitDescription(description, key string) string {
	room := maxValueLength - fieldOverhead(pixGUI) - fieldOverhead(key) - fieldHeaderLength
	if room <= 0 {
		return ""
	}
	return strings.TrimSpace(clip(stripNonASCII(description), room))
}

func fieldOverhead(value string) int {
	return fieldHeaderLength + len(value)
}

// 스캐너 호환을 위해 이름/도시는 악센트를 제거한 대문자 ASCII로 기록합니다.
func asciiFold(s string) string {
	return strings.ToUpper(stripNonASCII(s))
}

func stripNonASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)
	return strings.TrimSpace(folded)
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
