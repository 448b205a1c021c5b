package dataio

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/coronary-score-server/internal/domain"
)

// segmentPosition is where a wide-table column sits in the tree.
type segmentPosition struct {
	vessel   domain.Vessel
	location domain.Location
}

// segmentHeaders maps normalised wide-table headers to positions. D1/D2 and
// OM1/OM2 resolve through the proximal/distal branch segments.
var segmentHeaders = map[string]segmentPosition{
	"lm":    {domain.VesselLM, domain.LocationProximal},
	"左主干":   {domain.VesselLM, domain.LocationProximal},
	"lad近段": {domain.VesselLAD, domain.LocationProximal},
	"lad中段": {domain.VesselLAD, domain.LocationMid},
	"lad远段": {domain.VesselLAD, domain.LocationDistal},
	"前降支近段": {domain.VesselLAD, domain.LocationProximal},
	"前降支中段": {domain.VesselLAD, domain.LocationMid},
	"前降支远段": {domain.VesselLAD, domain.LocationDistal},
	"d1":    {domain.VesselD, domain.LocationProximal},
	"d2":    {domain.VesselD, domain.LocationDistal},
	"第一对角支": {domain.VesselD, domain.LocationProximal},
	"第二对角支": {domain.VesselD, domain.LocationDistal},
	"lcx近段": {domain.VesselLCX, domain.LocationProximal},
	"lcx中段": {domain.VesselLCX, domain.LocationMid},
	"lcx远段": {domain.VesselLCX, domain.LocationDistal},
	"回旋支近段": {domain.VesselLCX, domain.LocationProximal},
	"回旋支中段": {domain.VesselLCX, domain.LocationMid},
	"回旋支远段": {domain.VesselLCX, domain.LocationDistal},
	"om1":   {domain.VesselOM, domain.LocationProximal},
	"om2":   {domain.VesselOM, domain.LocationDistal},
	"第一钝缘支": {domain.VesselOM, domain.LocationProximal},
	"第二钝缘支": {domain.VesselOM, domain.LocationDistal},
	"rca近段": {domain.VesselRCA, domain.LocationProximal},
	"rca中段": {domain.VesselRCA, domain.LocationMid},
	"rca远段": {domain.VesselRCA, domain.LocationDistal},
	"右冠近段":  {domain.VesselRCA, domain.LocationProximal},
	"右冠中段":  {domain.VesselRCA, domain.LocationMid},
	"右冠远段":  {domain.VesselRCA, domain.LocationDistal},
	"pda":   {domain.VesselPDA, domain.LocationDistal},
	"后降支":   {domain.VesselPDA, domain.LocationDistal},
	"plv":   {domain.VesselPLV, domain.LocationDistal},
	"左室后支":  {domain.VesselPLV, domain.LocationDistal},
	"左室后侧支": {domain.VesselPLV, domain.LocationDistal},
}

func init() {
	// English aliases such as LAD_proximal, lcx_mid and rca_dist
	for _, v := range []domain.Vessel{domain.VesselLAD, domain.VesselLCX, domain.VesselRCA} {
		name := strings.ToLower(string(v))
		for loc, words := range map[domain.Location][]string{
			domain.LocationProximal: {"proximal", "prox", "p"},
			domain.LocationMid:      {"mid", "middle", "m"},
			domain.LocationDistal:   {"distal", "dist", "d"},
		} {
			for _, w := range words {
				segmentHeaders[name+"_"+w] = segmentPosition{v, loc}
			}
		}
	}
}

// columnAliases maps normalised header spellings to canonical field names.
var columnAliases = map[string][]string{
	"patient_id":        {"patient_id", "patientid", "id", "患者id", "病例号", "住院号", "编号", "入组编号", "入组id", "case_id"},
	"age":               {"age", "年龄", "当前年龄"},
	"gender":            {"gender", "sex", "性别"},
	"diabetes":          {"diabetes", "dm", "糖尿病"},
	"hypertension":      {"hypertension", "htn", "高血压"},
	"hyperlipidemia":    {"hyperlipidemia", "高脂血症", "血脂异常"},
	"smoking":           {"smoking", "smoker", "吸烟"},
	"family_history":    {"family_history", "家族史"},
	"creatinine_mg_dl":  {"creatinine_mg_dl", "creatinine", "cr", "肌酐"},
	"ldl_cholesterol":   {"ldl_cholesterol", "ldl", "ldl_c"},
	"ejection_fraction": {"ejection_fraction", "ef", "lvef", "射血分数", "左室射血分数"},
	"dominance":         {"dominance", "优势型", "冠脉优势"},
	"examination_date":  {"examination_date", "exam_date", "检查日期", "冠脉造影日期"},
	"examination_type":  {"examination_type", "exam_type", "检查类型"},

	"lesion_id":                      {"lesion_id"},
	"vessel":                         {"vessel", "血管", "病变血管"},
	"location":                       {"location", "位置", "病变位置"},
	"segment_id":                     {"segment_id", "segment"},
	"stenosis_percent":               {"stenosis_percent", "stenosis", "狭窄程度", "狭窄"},
	"length_mm":                      {"length_mm", "length", "病变长度"},
	"morphology":                     {"morphology", "病变类型"},
	"is_bifurcation":                 {"is_bifurcation", "bifurcation", "分叉"},
	"is_ostial":                      {"is_ostial", "ostial", "开口"},
	"is_calcified":                   {"is_calcified", "calcified", "钙化"},
	"is_tortuous":                    {"is_tortuous", "tortuous", "迂曲"},
	"is_cto":                         {"is_cto", "cto"},
	"thrombus_present":               {"thrombus_present", "thrombus", "血栓"},
	"is_treated":                     {"is_treated", "treated"},
	"treatment_method":               {"treatment_method", "治疗方式"},
	"medina":                         {"medina"},
	"bifurcation_angle_deg":          {"bifurcation_angle_deg", "bifurcation_angle"},
	"occlusion_over_3_months":        {"occlusion_over_3_months"},
	"blunt_stump":                    {"blunt_stump"},
	"bridging_collaterals":           {"bridging_collaterals"},
	"first_segment_invisible":        {"first_segment_invisible"},
	"side_branches_at_occlusion":     {"side_branches_at_occlusion"},
	"trifurcation_diseased_segments": {"trifurcation_diseased_segments"},
	"diffuse_small_vessel_segments":  {"diffuse_small_vessel_segments"},
	"non_diagnostic":                 {"non_diagnostic"},
}

var aliasToField = func() map[string]string {
	out := make(map[string]string)
	for field, aliases := range columnAliases {
		for _, a := range aliases {
			out[a] = field
		}
	}
	return out
}()

// normalizeHeader lower-cases a header, folds separators to underscores and
// drops the 左冠-/右冠- tree prefixes some clinical exports carry.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_", "（", "(", "）", ")").Replace(h)
	h = strings.TrimPrefix(h, "左冠_")
	h = strings.TrimPrefix(h, "右冠_")
	return h
}

// SegmentHeader reports the vessel position of a wide-table header.
func SegmentHeader(header string) (domain.Vessel, domain.Location, bool) {
	pos, ok := segmentHeaders[normalizeHeader(header)]
	return pos.vessel, pos.location, ok
}

var (
	percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)(?:\s*[-~～–]\s*(\d+(?:\.\d+)?))?\s*[%％]`)
	numberPattern  = regexp.MustCompile(`^(\d+(?:\.\d+)?)(?:\s*[-~～–]\s*(\d+(?:\.\d+)?))?$`)
)

// stenosisWords are checked in order; compound grades come before the grades
// they contain.
var stenosisWords = []struct {
	word  string
	value float64
}{
	{"次全闭塞", 95},
	{"subtotal", 95},
	{"完全闭塞", 100},
	{"闭塞", 100},
	{"occluded", 100},
	{"occlusion", 100},
	{"中重度", 80},
	{"轻中度", 60},
	{"重度", 90},
	{"严重", 90},
	{"severe", 90},
	{"中度", 70},
	{"moderate", 70},
	{"轻度", 50},
	{"mild", 50},
}

// NormalizeStenosis turns a free-text cell into a stenosis percent. A number
// or percentage is taken as is, a range yields its upper bound and grade
// words map to fixed values. A cell may describe several segments, so a
// percentage or grade anywhere in it wins over words like "正常" or "normal".
// ok is false when nothing in the cell reports a stenosis.
func NormalizeStenosis(cell string) (float64, bool) {
	text := strings.ToLower(strings.TrimSpace(cell))
	if text == "" || text == "-" || text == "/" {
		return 0, false
	}

	if matches := percentPattern.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		best := 0.0
		for _, m := range matches {
			best = max(best, upperBound(m))
		}
		return best, best > 0
	}
	if m := numberPattern.FindStringSubmatch(text); m != nil {
		v := upperBound(m)
		return v, v > 0
	}
	if strings.Contains(text, "cto") {
		return 100, true
	}
	for _, sw := range stenosisWords {
		if strings.Contains(text, sw.word) {
			return sw.value, true
		}
	}
	return 0, false
}

func upperBound(m []string) float64 {
	lo, _ := strconv.ParseFloat(m[1], 64)
	if len(m) > 2 && m[2] != "" {
		hi, _ := strconv.ParseFloat(m[2], 64)
		return max(lo, hi)
	}
	return lo
}

// applyCellFeatures sets lesion flags named in a descriptive cell.
func applyCellFeatures(l *domain.Lesion, cell string) {
	text := strings.ToLower(cell)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}
	if has("钙化", "calcif") {
		l.IsCalcified = true
	}
	if has("血栓", "thromb") {
		l.ThrombusPresent = true
	}
	if has("迂曲", "扭曲", "tortuous") {
		l.IsTortuous = true
	}
	if has("开口", "ostial") {
		l.IsOstial = true
	}
	if has("分叉", "分岔", "bifurcation") {
		l.IsBifurcation = true
	}
	if has("cto", "慢性闭塞") && l.StenosisPercent >= 99 {
		l.IsCTO = true
	}
	if has("支架", "stent") {
		l.IsTreated = true
		l.TreatmentMethod = "stent"
	}
}

// parseBool accepts the spellings clinical spreadsheets use for yes/no.
func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "yes", "y", "1", "是", "有", "阳性", "+":
		return true, true
	case "false", "f", "no", "n", "0", "否", "无", "阴性", "-":
		return false, true
	case "":
		return false, false
	default:
		return false, false
	}
}

// parseGender also accepts the 1/0 coding used by some registries.
func parseGender(raw string) (domain.Sex, error) {
	switch strings.TrimSpace(raw) {
	case "1":
		return domain.SexMale, nil
	case "0", "2":
		return domain.SexFemale, nil
	}
	return domain.ParseSex(strings.TrimSuffix(strings.TrimSpace(raw), "性"))
}

func parseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSuffix(s, "岁")
	s = strings.TrimSuffix(s, "mm")
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006/01/02", "2006.01.02", "20060102", "01-02-06"}

func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
