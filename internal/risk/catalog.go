package risk

// Symptom is a catalogue entry offered by the symptom checker.
type Symptom struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// SeverityLevel describes one point on the 1..5 severity scale.
type SeverityLevel struct {
	Value       int    `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Catalogue lists the symptoms of aplastic anemia and related marrow disorders.
var Catalogue = []Symptom{
	{ID: "fatigue", Name: "Fatigue and Weakness", Category: "General", Description: "Persistent tiredness and lack of energy"},
	{ID: "shortness_of_breath", Name: "Shortness of Breath", Category: "Respiratory", Description: "Difficulty breathing, especially with exertion"},
	{ID: "pale_skin", Name: "Pale Skin and Mucous Membranes", Category: "Appearance", Description: "Paleness of skin, gums, or inner eyelids"},
	{ID: "easy_bruising", Name: "Easy Bruising", Category: "Bleeding", Description: "Bruising easily or with minimal trauma"},
	{ID: "nosebleeds", Name: "Nosebleeds", Category: "Bleeding", Description: "Frequent or prolonged nosebleeds"},
	{ID: "bleeding_gums", Name: "Bleeding Gums", Category: "Bleeding", Description: "Gums that bleed easily when brushing teeth"},
	{ID: "petechiae", Name: "Small Red Spots (Petechiae)", Category: "Bleeding", Description: "Small red or purple spots on the skin"},
	{ID: "frequent_infections", Name: "Frequent Infections", Category: "Immune", Description: "Getting sick more often than usual"},
	{ID: "prolonged_fever", Name: "Prolonged Fever", Category: "Immune", Description: "Fever that lasts longer than expected"},
	{ID: "slow_healing", Name: "Slow Wound Healing", Category: "Immune", Description: "Cuts and wounds take longer to heal"},
	{ID: "dizziness", Name: "Dizziness or Lightheadedness", Category: "Neurological", Description: "Feeling dizzy or faint, especially when standing"},
	{ID: "headaches", Name: "Headaches", Category: "Neurological", Description: "More frequent or severe headaches than usual"},
	{ID: "rapid_heartbeat", Name: "Rapid Heartbeat", Category: "Cardiovascular", Description: "Heart beating faster than normal"},
	{ID: "chest_pain", Name: "Chest Pain", Category: "Cardiovascular", Description: "Pain or discomfort in the chest area"},
}

// SeverityLevels is the 1..5 scale used by the symptom checker.
var SeverityLevels = []SeverityLevel{
	{Value: 1, Label: "Mild", Description: "Barely noticeable"},
	{Value: 2, Label: "Light", Description: "Noticeable but not bothersome"},
	{Value: 3, Label: "Moderate", Description: "Somewhat bothersome"},
	{Value: 4, Label: "Severe", Description: "Very bothersome"},
	{Value: 5, Label: "Extreme", Description: "Unable to function"},
}

// Durations are the fixed duration buckets a symptom can be reported with.
var Durations = []string{
	"Less than 1 week",
	"1-2 weeks",
	"2-4 weeks",
	"1-3 months",
	"3-6 months",
	"More than 6 months",
}

// IsDuration reports whether d is one of Durations.
func IsDuration(d string) bool {
	for _, v := range Durations {
		if v == d {
			return true
		}
	}
	return false
}

var catalogueIDs = func() map[string]struct{} {
	ids := make(map[string]struct{}, len(Catalogue))
	for _, s := range Catalogue {
		ids[s.ID] = struct{}{}
	}
	return ids
}()

// IsKnownSymptom reports whether tag is scored explicitly or listed in the catalogue.
func IsKnownSymptom(tag string) bool {
	if _, ok := highRiskSymptoms[tag]; ok {
		return true
	}
	if _, ok := mediumRiskSymptoms[tag]; ok {
		return true
	}
	_, ok := catalogueIDs[tag]
	return ok
}
