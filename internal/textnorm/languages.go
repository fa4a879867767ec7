package textnorm

// Inflectional suffixes stripped per language, longest first. These are
// deliberately shallow: enough to collapse common number/case/gender forms
// for token-overlap scoring, not a full stemmer.
var suffixes = map[string][]string{
	"en": {"ingly", "edly", "ing", "ies", "ed", "es", "ly", "s"},
	"ru": {"ениями", "ениях", "ением", "ениям", "ами", "ями", "ого", "его", "ому", "ему", "ыми", "ими", "ах", "ях", "ев", "ов", "ие", "ые", "ое", "ая", "яя", "ой", "ей", "ом", "ем", "ам", "ям", "ия", "ья", "а", "я", "о", "е", "ы", "и", "ь", "у", "ю"},
	"uk": {"ами", "ями", "ого", "ому", "ими", "ах", "ях", "ів", "ие", "і", "а", "я", "о", "е", "и", "ь", "у", "ю"},
	"de": {"ungen", "heiten", "keiten", "ung", "heit", "keit", "en", "er", "es", "em", "e", "n", "s"},
	"fr": {"issements", "issement", "ements", "ement", "euses", "euse", "eux", "ées", "ée", "és", "er", "es", "e", "s"},
	"nl": {"heden", "ingen", "ing", "en", "je", "s"},
	"pl": {"owie", "ach", "ami", "ego", "emu", "owi", "ym", "im", "om", "ów", "ie", "a", "y", "i", "e", "o", "u", "ą", "ę"},
	"pt": {"izações", "ização", "amente", "mente", "ções", "ção", "os", "as", "es", "a", "o", "e", "s"},
	"sv": {"heterna", "heten", "arna", "erna", "orna", "ande", "ende", "ar", "er", "or", "en", "et", "a", "n"},
}

var stopwords = map[string]map[string]struct{}{
	"en": set("the", "a", "an", "and", "or", "of", "in", "on", "at", "to", "is",
		"are", "was", "were", "that", "this", "it", "as", "by", "for", "with",
		"from", "be", "has", "have", "had", "its", "his", "her", "their"),
	"ru": set("и", "в", "во", "не", "на", "с", "со", "по", "из", "за", "от",
		"до", "у", "о", "об", "что", "как", "это", "для", "был", "была", "было"),
	"uk": set("і", "в", "на", "з", "не", "що", "як", "до", "за", "від", "це"),
	"de": set("der", "die", "das", "und", "in", "von", "zu", "den", "dem",
		"mit", "auf", "für", "ist", "im", "des", "ein", "eine", "einer", "als"),
	"fr": set("le", "la", "les", "de", "des", "du", "un", "une", "et", "en",
		"à", "au", "aux", "est", "dans", "par", "pour", "sur", "que", "qui"),
	"nl": set("de", "het", "een", "en", "van", "in", "op", "te", "met", "is",
		"dat", "die", "voor", "aan", "door"),
	"pl": set("i", "w", "z", "na", "do", "nie", "że", "się", "jest", "od",
		"po", "za", "przez", "o", "jak"),
	"pt": set("o", "a", "os", "as", "de", "do", "da", "dos", "das", "um",
		"uma", "e", "em", "no", "na", "que", "com", "por", "para", "é"),
	"sv": set("och", "i", "att", "det", "som", "en", "ett", "av", "är", "på",
		"för", "med", "till", "den", "har"),
	"vi": set("là", "của", "và", "các", "có", "được", "trong", "một", "cho"),
	"zh": {},
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
