package rag

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/velora-ai/velora/plugin/ai/vector"
)

// Service is a bookable salon service.
type Service struct {
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Description     string  `json:"description"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
}

// Stylist is a member of the salon staff.
type Stylist struct {
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	Specialties  []string `json:"specialties"`
	Bio          string   `json:"bio"`
	Availability []string `json:"availability"`
}

// FAQ is a question/answer pair.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Location is a salon location with opening hours.
type Location struct {
	Name    string            `json:"name"`
	Address string            `json:"address"`
	Phone   string            `json:"phone"`
	Hours   map[string]string `json:"hours"`
	Parking string            `json:"parking"`
}

// SalonInfo is general information about the business.
type SalonInfo struct {
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Website string `json:"website"`
}

// KnowledgeBase is the raw salon knowledge data.
type KnowledgeBase struct {
	Salon     SalonInfo         `json:"salon"`
	Services  []Service         `json:"services"`
	Stylists  []Stylist         `json:"stylists"`
	Policies  map[string]string `json:"policies"`
	FAQs      []FAQ             `json:"faqs"`
	Locations []Location        `json:"locations"`
}

// LoadKnowledgeBase reads the salon knowledge JSON from disk.
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read knowledge base %s", path)
	}
	var kb KnowledgeBase
	if err := json.Unmarshal(data, &kb); err != nil {
		return nil, errors.Wrap(err, "failed to parse knowledge base")
	}
	return &kb, nil
}

// ServiceByName looks up a service by case-insensitive name.
func (kb *KnowledgeBase) ServiceByName(name string) (*Service, bool) {
	for i := range kb.Services {
		if strings.EqualFold(kb.Services[i].Name, name) {
			return &kb.Services[i], true
		}
	}
	return nil, false
}

// StylistByName looks up a stylist by case-insensitive name.
func (kb *KnowledgeBase) StylistByName(name string) (*Stylist, bool) {
	for i := range kb.Stylists {
		if strings.EqualFold(kb.Stylists[i].Name, name) {
			return &kb.Stylists[i], true
		}
	}
	return nil, false
}

// Documents flattens the knowledge base into indexable documents, one per
// service, stylist, policy, FAQ, and location, plus a general info document.
func (kb *KnowledgeBase) Documents() []vector.Document {
	var docs []vector.Document

	for i, svc := range kb.Services {
		docs = append(docs, vector.Document{
			ID:     fmt.Sprintf("service_%d", i),
			Source: "services",
			Content: fmt.Sprintf("Service: %s\nCategory: %s\nDescription: %s\nDuration: %d minutes\nPrice: $%.2f",
				svc.Name, svc.Category, svc.Description, svc.DurationMinutes, svc.Price),
			Metadata: map[string]string{"service_name": svc.Name},
		})
	}

	for i, st := range kb.Stylists {
		docs = append(docs, vector.Document{
			ID:     fmt.Sprintf("stylist_%d", i),
			Source: "stylists",
			Content: fmt.Sprintf("Stylist: %s\nTitle: %s\nSpecialties: %s\nBio: %s\nAvailable: %s",
				st.Name, st.Title, strings.Join(st.Specialties, ", "), st.Bio, strings.Join(st.Availability, ", ")),
			Metadata: map[string]string{"stylist_name": st.Name},
		})
	}

	// Policies iterate in sorted key order so document IDs are stable
	// across restarts.
	policyKeys := make([]string, 0, len(kb.Policies))
	for key := range kb.Policies {
		policyKeys = append(policyKeys, key)
	}
	sort.Strings(policyKeys)
	for i, key := range policyKeys {
		docs = append(docs, vector.Document{
			ID:       fmt.Sprintf("policy_%d", i),
			Source:   "policies",
			Content:  fmt.Sprintf("Policy - %s: %s", titleCase(key), kb.Policies[key]),
			Metadata: map[string]string{"policy_type": key},
		})
	}

	for i, faq := range kb.FAQs {
		docs = append(docs, vector.Document{
			ID:      fmt.Sprintf("faq_%d", i),
			Source:  "faqs",
			Content: fmt.Sprintf("Q: %s\nA: %s", faq.Question, faq.Answer),
		})
	}

	for i, loc := range kb.Locations {
		var hours []string
		dayKeys := make([]string, 0, len(loc.Hours))
		for day := range loc.Hours {
			dayKeys = append(dayKeys, day)
		}
		sort.Strings(dayKeys)
		for _, day := range dayKeys {
			hours = append(hours, fmt.Sprintf("  %s: %s", day, loc.Hours[day]))
		}
		docs = append(docs, vector.Document{
			ID:     fmt.Sprintf("location_%d", i),
			Source: "locations",
			Content: fmt.Sprintf("Location: %s\nAddress: %s\nPhone: %s\nHours:\n%s\nParking: %s",
				loc.Name, loc.Address, loc.Phone, strings.Join(hours, "\n"), loc.Parking),
			Metadata: map[string]string{"location_name": loc.Name},
		})
	}

	docs = append(docs, vector.Document{
		ID:     "salon_info",
		Source: "salon_info",
		Content: fmt.Sprintf("Salon: %s\nTagline: %s\nPhone: %s\nEmail: %s\nWebsite: %s",
			kb.Salon.Name, kb.Salon.Tagline, kb.Salon.Phone, kb.Salon.Email, kb.Salon.Website),
	})

	return docs
}

func titleCase(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
