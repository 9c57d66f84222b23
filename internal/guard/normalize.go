package guard

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"
	"github.com/mtibben/confusables"
	"golang.org/x/text/unicode/norm"
)

// persianLetters 는 아랍 문자 변형을 페르시아 표준 글자로 통일한다.
var persianLetters = strings.NewReplacer(
	"ي", "ی",
	"ى", "ی",
	"ك", "ک",
	"ة", "ه",
	"ـ", "", // tatweel
)

// normalizeText 는 규칙 매칭 전에 입력을 정규화한다.
// ASCII 입력은 이모지와 제어 문자만 지운다. 그 밖의 입력은 NFC, 페르시아 글자 통일, 발음 기호 제거를 거친 뒤
// 아랍 문자가 아닌 구간만 homoglyph skeleton + NFKC 로 바꾼다.
func normalizeText(text string) string {
	if gomoji.ContainsEmoji(text) {
		text = gomoji.RemoveEmojis(text)
	}
	if isASCIIOnly(text) {
		return stripControlChars(text)
	}
	text = persianLetters.Replace(norm.NFC.String(text))
	text = dropRunes(text, isArabicMark)
	return stripControlChars(skeletonOutsideArabic(text))
}

// skeletonOutsideArabic 은 아랍 문자 구간은 그대로 두고 나머지 구간만 confusables skeleton 으로 바꾼다.
// 페르시아 글자를 skeleton 에 넣으면 라틴 글자로 뭉개진다.
func skeletonOutsideArabic(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	runStart := -1
	flush := func(end int) {
		if runStart >= 0 {
			out.WriteString(norm.NFKC.String(confusables.Skeleton(text[runStart:end])))
			runStart = -1
		}
	}
	for i, r := range text {
		if unicode.Is(unicode.Arabic, r) {
			flush(i)
			out.WriteRune(r)
		} else if runStart < 0 {
			runStart = i
		}
	}
	flush(len(text))
	return out.String()
}

// isArabicMark 는 아랍 문자 결합 부호(fatha, kasra, shadda 등)인지 판단한다.
// 대부분 Inherited 스크립트라 unicode.Arabic 으로는 잡히지 않는다.
func isArabicMark(r rune) bool {
	switch {
	case r >= 0x0610 && r <= 0x061A, r >= 0x064B && r <= 0x065F, r == 0x0670:
		return true
	case r >= 0x06D6 && r <= 0x06ED:
		return unicode.Is(unicode.Mn, r)
	default:
		return false
	}
}

func isControl(r rune) bool {
	return unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Cc, r)
}

// stripControlChars 는 Cc, Cf 문자를 지운다.
// ZWNJ 도 Cf 라서 "دستورالعمل‌ها" 와 "دستورالعملها" 는 같게 취급된다.
func stripControlChars(text string) string {
	return dropRunes(text, isControl)
}

// dropRunes 는 drop 에 걸리는 문자를 지운다. 지울 것이 없으면 원본을 그대로 돌려준다.
func dropRunes(text string, drop func(rune) bool) string {
	first := strings.IndexFunc(text, drop)
	if first < 0 {
		return text
	}
	var out strings.Builder
	out.Grow(len(text))
	out.WriteString(text[:first])
	for _, r := range text[first:] {
		if !drop(r) {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func isASCIIOnly(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// trimForLog 는 로그에 남길 입력을 앞쪽 50자로 자른다.
func trimForLog(value string) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= 50 {
		return value
	}
	return string([]rune(value)[:50])
}
