package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// FAQ is one frequently asked question.
type FAQ struct {
	Question string `json:"q"`
	Answer   string `json:"a"`
	Category string `json:"category,omitempty"`
}

var faqTopics = []string{"inscription", "paiement", "annulation", "equipement", "general"}

var faqs = map[string][]FAQ{
	"inscription": {
		{
			Question: "Comment inscrire mon enfant?",
			Answer:   "Vous pouvez inscrire votre enfant directement via ce chat! Je vais vous guider étape par étape. Vous aurez besoin du nom de votre enfant, son âge, et vos coordonnées. Le paiement se fait en ligne par carte de crédit via Stripe (sécurisé).",
		},
		{
			Question: "Peut-on inscrire plusieurs enfants?",
			Answer:   "Absolument! Vous pouvez inscrire plusieurs enfants. Chaque inscription est traitée séparément pour que chaque enfant ait sa place réservée.",
		},
	},
	"paiement": {
		{
			Question: "Quels modes de paiement acceptez-vous?",
			Answer:   "Nous acceptons les paiements par carte de crédit (Visa, Mastercard, American Express) via notre plateforme sécurisée Stripe.",
		},
		{
			Question: "Les taxes sont-elles incluses?",
			Answer:   "Les prix affichés sont avant taxes. La TPS (5%) et la TVQ (9.975%) s'appliquent au montant.",
		},
	},
	"annulation": {
		{
			Question: "Quelle est votre politique d'annulation?",
			Answer:   "Pour toute demande d'annulation ou de remboursement, veuillez contacter Hope Basketball directement à info.hopebasketballquebec@gmail.com. Chaque situation est évaluée individuellement.",
		},
	},
	"equipement": {
		{
			Question: "Que doit apporter mon enfant?",
			Answer:   "Votre enfant doit apporter : un lunch et des collations, une bouteille d'eau, des vêtements de sport confortables, et des chaussures de sport intérieures (semelles non marquantes). Un ballon de basketball est fourni sur place.",
		},
		{
			Question: "Y a-t-il un service de garde?",
			Answer:   "Oui! Le service de garde est inclus dans le prix du camp. Il est disponible de 8h00 à 9h00 le matin et de 16h00 à 17h00 l'après-midi.",
		},
	},
	"general": {
		{
			Question: "À quel âge peut-on participer?",
			Answer:   "Les camps sont ouverts aux jeunes de 8 à 17 ans, tous niveaux confondus. Aucune expérience en basketball n'est requise!",
		},
		{
			Question: "Où se déroulent les camps?",
			Answer:   "Les camps se déroulent au Collège Mariste de Québec, situé au 2315 Chemin St-Louis, Québec.",
		},
		{
			Question: "Y a-t-il des places gratuites?",
			Answer:   "Oui! Hope Basketball offre environ 15 places gratuites par camp pour les jeunes de milieux défavorisés. C'est au cœur de notre mission sociale. Contactez-nous pour en savoir plus.",
		},
	},
}

// FAQTool answers common questions from a static list.
type FAQTool struct{}

func (t *FAQTool) Definition() mcp.Tool {
	return mcp.NewTool("get_faq",
		mcp.WithDescription("Retourne les questions fréquemment posées sur les camps Hope Basketball."),
		mcp.WithString("topic",
			mcp.Enum(faqTopics...),
			mcp.Description("Sujet de la question (inscription, paiement, annulation, equipement, general)"),
		),
	)
}

func (t *FAQTool) Run(_ context.Context, input json.RawMessage) (any, error) {
	var args struct {
		Topic string `json:"topic"`
	}
	if err := decode(input, &args); err != nil {
		return nil, err
	}

	type answer struct {
		result
		FAQs  []FAQ  `json:"faqs"`
		Topic string `json:"topic"`
	}
	if items, ok := faqs[args.Topic]; ok {
		return answer{result{true}, items, args.Topic}, nil
	}

	var all []FAQ
	for _, topic := range faqTopics {
		for _, f := range faqs[topic] {
			f.Category = topic
			all = append(all, f)
		}
	}
	return answer{result{true}, all, "all"}, nil
}
