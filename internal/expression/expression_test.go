package expression

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	attrs := map[string]string{"env": "prod", "region": "eu", "empty": ""}

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"literal", "orders", "orders"},
		{"prefix reference", "${env}_orders", "prod_orders"},
		{"two references", "${env}.${region}.orders", "prod.eu.orders"},
		{"padded name", "${ env }", "prod"},
		{"escaped dollar", "$${env}", "${env}"},
		{"lone dollar", "price$", "price$"},
		{"dollar without brace", "$env", "$env"},
		{"empty attribute", "t${empty}", "t"},
		{"empty expression", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr, attrs)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateMissingAttribute(t *testing.T) {
	_, err := Evaluate("${tenant}_orders", map[string]string{"env": "prod"})
	var ue *UnresolvedError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, "tenant", ue.Name)
}

func TestParseSyntaxErrors(t *testing.T) {
	for _, expr := range []string{"${env", "orders_${", "${}", "${  }"} {
		_, err := Parse(expr)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("Parse(%q): expected SyntaxError, got %v", expr, err)
		}
	}
}

func TestReferences(t *testing.T) {
	e, err := Parse("${a}-x-${b}")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, e.References())
	require.Equal(t, "${a}-x-${b}", e.String())

	require.True(t, HasReferences("${env}_orders"))
	require.False(t, HasReferences("orders"))
	require.False(t, HasReferences("$${env}"))
	require.True(t, HasReferences("${broken"))
}
