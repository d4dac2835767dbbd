package prompt

import (
	"strings"
	"testing"

	"github.com/vendaflow/agent-core/internal/model"
)

func TestComposeDeterministic(t *testing.T) {
	cfg := model.AgentConfig{
		AgentName:           "Lia",
		BusinessType:        "medical_clinic",
		QualificationFields: []string{"nome completo", "motivo da consulta", "convênio"},
	}
	history := []model.Message{
		{Direction: model.DirectionInbound, Content: "quero agendar uma consulta"},
		{Direction: model.DirectionTool, ToolName: "create_contact", ToolResult: "contato criado: Maria (id abc)"},
	}

	first := Compose(cfg, history)
	for i := 0; i < 10; i++ {
		if Compose(cfg, history) != first {
			t.Fatal("identical inputs produced different prompts")
		}
	}
}

func TestComposeContents(t *testing.T) {
	cfg := model.AgentConfig{
		AgentName:           "Lia",
		BusinessType:        "medical_clinic",
		QualificationFields: []string{"nome completo", "motivo da consulta"},
	}

	got := Compose(cfg, nil)

	if !strings.Contains(got, "Você é Lia") {
		t.Error("prompt missing agent name")
	}
	if !strings.Contains(got, "1. nome completo") || !strings.Contains(got, "2. motivo da consulta") {
		t.Error("prompt missing ordered qualification fields")
	}
	if !strings.Contains(got, "transfer_to_human") {
		t.Error("prompt missing handoff rules")
	}
	if strings.Contains(got, "Contexto recente") {
		t.Error("empty history must not add a recap section")
	}
}

func TestComposeDefaultAgentName(t *testing.T) {
	got := Compose(model.AgentConfig{}, nil)
	if !strings.Contains(got, "Você é Assistente") {
		t.Error("empty agent name should fall back to Assistente")
	}
}

func TestComposeToolRecap(t *testing.T) {
	history := []model.Message{
		{Direction: model.DirectionInbound, Content: "oi"},
		{Direction: model.DirectionTool, ToolName: "create_contact", ToolResult: "contato criado: Maria (id abc)\ndetalhe extra"},
		{Direction: model.DirectionOutbound, Content: "olá!"},
	}

	got := Compose(model.AgentConfig{AgentName: "Lia"}, history)

	if !strings.Contains(got, "ferramenta create_contact já executada: contato criado: Maria (id abc)") {
		t.Error("recap missing executed tool")
	}
	if strings.Contains(got, "detalhe extra") {
		t.Error("recap should keep only the first line of the tool result")
	}
	if strings.Contains(got, "olá!") {
		t.Error("text turns belong to the chat messages, not the recap")
	}
}

func TestOverlayFallback(t *testing.T) {
	known := Compose(model.AgentConfig{AgentName: "Lia", BusinessType: "real_estate"}, nil)
	unknown := Compose(model.AgentConfig{AgentName: "Lia", BusinessType: "pet_shop"}, nil)
	empty := Compose(model.AgentConfig{AgentName: "Lia"}, nil)

	if known == unknown {
		t.Error("real_estate overlay should differ from the generic one")
	}
	if unknown != empty {
		t.Error("unknown business type must fall back to the generic overlay")
	}
}
