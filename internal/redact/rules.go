package redact

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules holds the swappable vocabulary that drives column classification.
// Every list is matched against lower-cased column names or cell values.
type Rules struct {
	// SafeKeywords mark operational columns; a name containing one is never personal.
	SafeKeywords []string `yaml:"safe_keywords"`
	// PersonnelHints mark personnel-adjacent names; their content is checked
	// with PersonnelThreshold.
	PersonnelHints []string `yaml:"personnel_hints"`
	// DefinitePatterns are regular expressions that must match the whole name.
	DefinitePatterns []string `yaml:"definite_patterns"`
	// StrictKeywords must equal the normalized name exactly.
	StrictKeywords []string `yaml:"strict_keywords"`
	// CommonNames are first names detected as whole words inside cell values.
	CommonNames []string `yaml:"common_names"`
	// TechnicalTerms suppress name-shaped matches (equipment and unit vocabulary).
	TechnicalTerms []string `yaml:"technical_terms"`

	SampleSize         int     `yaml:"sample_size"`
	Threshold          float64 `yaml:"threshold"`
	PersonnelThreshold float64 `yaml:"personnel_threshold"`
}

// DefaultRules returns the built-in Turkish/English shift-log vocabulary.
func DefaultRules() Rules {
	return Rules{
		SafeKeywords: []string{
			"id", "tarih", "date", "saat", "time", "vardiya", "shift", "bilgisi",
			"makine", "machine", "uretim", "üretim", "production", "miktar", "quantity",
			"sorun", "problem", "hata", "error", "cozum", "çözüm", "solution",
			"aciklama", "açıklama", "description", "detay", "detail", "durum", "status",
			"bolum", "bölüm", "department", "alan", "area", "lokasyon", "location",
			"kategori", "category", "tip", "type", "kod", "code",
			"deger", "değer", "value", "sonuc", "sonuç", "result", "rapor", "report",
			"komur", "kömür", "degirmen", "değirmen", "coal", "mill",
			"cso", "lab", "ünite", "unite", "unit", "sistem", "system",
			"bunker", "fan", "motor", "pump", "pompa", "vana", "valve",
			"sensor", "sensör", "metre", "meter", "basınç", "pressure",
			"sıcaklık", "temperature", "nem", "humidity", "hız", "speed",
			"kontrol", "control", "test", "bakım", "maintenance", "onarım", "repair",
			"temizlik", "cleaning", "ayar", "adjustment", "kalibrasyon", "calibration",
			"ölçüm", "measurement", "analiz", "analysis", "inceleme", "inspection",
			"iletilmek", "istenen", "takip", "etmesi", "gereken", "kalite",
			"spek", "planı", "haricinde", "yapılan", "işler", "arızalanan",
			"edilen", "bakımı", "cihaz", "ekipman", "equipment", "device",
			"explanation", "note", "notes", "comment", "remarks", "bilgi", "info",
			"information", "desc", "details", "özet", "summary", "text", "metin",
		},
		PersonnelHints: []string{"vardiyacı", "vardiyaci", "personel", "calisan", "çalışan"},
		DefinitePatterns: []string{
			`personel`, `personnel`, `başlatan`, `baslatan`,
			`vardiyaci`, `vardiyacı`, `onaylayan`, `approver`,
			`personel\.\d+`, `personnel\.\d+`, `personel\s*\d+`,
			`calisan\.\d+`, `çalışan\.\d+`, `employee\.\d+`,
			`.*birlikte.*personel.*`, `.*birlikte.*çalışan.*`, `.*team.*member.*`,
			`.*çalışılan.*personel.*`, `.*working.*with.*`, `.*co-?worker.*`,
		},
		StrictKeywords: []string{
			"isim", "ad", "soyad", "name", "surname", "firstname", "lastname",
			"full_name", "tam_ad", "personel_adi", "calisan_adi",
			"tc", "tcno", "tc_no", "kimlik", "identity", "sicil_no",
			"telefon", "phone", "email", "mail", "eposta",
		},
		CommonNames: []string{
			"mehmet", "ahmet", "mustafa", "ali", "hasan", "hüseyin", "ibrahim", "ismail",
			"murat", "osman", "süleyman", "yusuf", "fatma", "ayşe", "emine", "hatice",
			"zeynep", "şerife", "sultan", "özlem", "elif", "sema", "nuriye", "gülsün",
			"serkan", "onur", "burak", "emre", "kemal", "deniz", "yasemin", "selin",
			"pınar", "sibel", "dilek", "gül", "mine", "özge",
		},
		TechnicalTerms: []string{
			"çim", "cem", "çd", "cd", "df", "mb", "gb", "kg", "lt", "mt", "cm",
			"mm", "bar", "psi", "rpm", "kwh", "mw", "kw", "amp", "volt", "hz",
			"flux", "silo", "bunker", "mill", "coal", "cso", "lab", "test",
			"deg", "temp", "press", "flow", "level", "speed", "load", "run",
			"stop", "start", "auto", "manual", "alarm", "trip", "fault",
		},
		SampleSize:         20,
		Threshold:          0.8,
		PersonnelThreshold: 0.5,
	}
}

// LoadRules reads a YAML rules file. Lists and numbers present in the file replace
// the corresponding defaults; absent fields keep their default values.
func LoadRules(path string) (Rules, error) {
	r := DefaultRules()
	if path == "" {
		return r, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read rules: %w", err)
	}
	var over Rules
	if err := yaml.Unmarshal(b, &over); err != nil {
		return r, fmt.Errorf("parse rules: %w", err)
	}
	return r.merge(over), nil
}

func (r Rules) merge(o Rules) Rules {
	pick := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = append([]string(nil), src...)
		}
	}
	pick(&r.SafeKeywords, o.SafeKeywords)
	pick(&r.PersonnelHints, o.PersonnelHints)
	pick(&r.DefinitePatterns, o.DefinitePatterns)
	pick(&r.StrictKeywords, o.StrictKeywords)
	pick(&r.CommonNames, o.CommonNames)
	pick(&r.TechnicalTerms, o.TechnicalTerms)
	if o.SampleSize > 0 {
		r.SampleSize = o.SampleSize
	}
	if o.Threshold > 0 {
		r.Threshold = o.Threshold
	}
	if o.PersonnelThreshold > 0 {
		r.PersonnelThreshold = o.PersonnelThreshold
	}
	return r
}
