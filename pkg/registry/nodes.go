package registry

import (
	"github.com/luisscruza/optiflow-sub005/pkg/nodes/condition"
	"github.com/luisscruza/optiflow-sub005/pkg/nodes/telegram"
	"github.com/luisscruza/optiflow-sub005/pkg/nodes/trigger"
	"github.com/luisscruza/optiflow-sub005/pkg/nodes/webhook"
	"github.com/luisscruza/optiflow-sub005/pkg/nodes/whatsapp"
)

// RegisterDefaultNodes registers all built-in node factories.
func (r *Registry) RegisterDefaultNodes() {
	r.RegisterNode(trigger.NewStageEnteredNodeFactory())
	r.RegisterNode(condition.NewConditionNodeFactory())
	r.RegisterNode(webhook.NewWebhookNodeFactory())
	r.RegisterNode(telegram.NewTelegramNodeFactory())
	r.RegisterNode(whatsapp.NewWhatsAppNodeFactory())
}
