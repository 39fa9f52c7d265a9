package email

import (
	"testing"

	"github.com/fieldserve/workorder/internal/domain/entity"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		tpl    string
		fields map[string]string
		want   string
	}{
		{
			name:   "single placeholder",
			tpl:    "Work order {{work_order_number}} was assigned",
			fields: map[string]string{"work_order_number": "WO-2026-00042"},
			want:   "Work order WO-2026-00042 was assigned",
		},
		{
			name: "repeated placeholder",
			tpl:  "{{name}}, invoice for {{name}}",
			fields: map[string]string{
				"name": "Acme",
			},
			want: "Acme, invoice for Acme",
		},
		{
			name:   "unknown placeholder left untouched",
			tpl:    "Hello {{full_name}}, welcome to {{company_name}}",
			fields: map[string]string{"full_name": "Pat Lee"},
			want:   "Hello Pat Lee, welcome to {{company_name}}",
		},
		{
			name:   "no fields",
			tpl:    "Static subject {{anything}}",
			fields: nil,
			want:   "Static subject {{anything}}",
		},
		{
			name:   "empty template",
			tpl:    "",
			fields: map[string]string{"a": "b"},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.tpl, tt.fields); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	tpl := &entity.EmailTemplate{
		Event:    "work_order_assigned",
		Subject:  "Assigned: {{work_order_number}}",
		HTMLBody: "<p>{{work_order_title}}</p>",
		TextBody: "{{work_order_title}}",
	}

	rendered, err := RenderTemplate(tpl, map[string]string{
		"work_order_number": "WO-2026-00001",
		"work_order_title":  "Replace compressor",
	})
	if err != nil {
		t.Fatalf("RenderTemplate() error = %v", err)
	}

	if rendered.Subject != "Assigned: WO-2026-00001" {
		t.Errorf("Subject = %q", rendered.Subject)
	}
	if rendered.HTMLBody != "<p>Replace compressor</p>" {
		t.Errorf("HTMLBody = %q", rendered.HTMLBody)
	}
	if rendered.TextBody != "Replace compressor" {
		t.Errorf("TextBody = %q", rendered.TextBody)
	}
}

func TestRenderTemplate_Nil(t *testing.T) {
	if _, err := RenderTemplate(nil, nil); err == nil {
		t.Error("expected error for nil template")
	}
}
