package security

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
)

// DefaultPolicy grants an action to admins and to holders of a matching
// "resource:action", "resource:*" or "*" permission.
const DefaultPolicy = `is_admin ||
	(resource + ":" + action) in permissions ||
	(resource + ":*") in permissions ||
	"*" in permissions`

// CELOracle evaluates one compiled CEL expression per action.
// Actions without an override use DefaultPolicy.
type CELOracle struct {
	subjects SubjectResolver
	programs map[Action]cel.Program
	fallback cel.Program
}

// NewCELOracle compiles the default policy and every override up front, so a
// broken expression fails at startup rather than on the first request.
func NewCELOracle(subjects SubjectResolver, overrides map[Action]string) (*CELOracle, error) {
	env, err := cel.NewEnv(
		cel.Variable("user_id", cel.StringType),
		cel.Variable("roles", cel.ListType(cel.StringType)),
		cel.Variable("permissions", cel.ListType(cel.StringType)),
		cel.Variable("is_admin", cel.BoolType),
		cel.Variable("resource", cel.StringType),
		cel.Variable("action", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	fallback, err := compilePolicy(env, DefaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("default policy: %w", err)
	}

	programs := make(map[Action]cel.Program, len(overrides))
	for action, expr := range overrides {
		prg, err := compilePolicy(env, expr)
		if err != nil {
			return nil, fmt.Errorf("policy for %q: %w", action, err)
		}
		programs[action] = prg
	}

	return &CELOracle{subjects: subjects, programs: programs, fallback: fallback}, nil
}

func compilePolicy(env *cel.Env, expr string) (cel.Program, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, fmt.Errorf("policy must evaluate to bool, got %v", ast.OutputType())
	}
	return env.Program(ast)
}

// CheckPermission implements PermissionOracle. Unknown users are denied.
func (o *CELOracle) CheckPermission(ctx context.Context, userID string, resource Resource, action Action) (bool, error) {
	if userID == "" {
		return false, nil
	}
	subject, err := o.subjects.ResolveSubject(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("resolve subject: %w", err)
	}
	if subject == nil {
		return false, nil
	}

	prg, ok := o.programs[action]
	if !ok {
		prg = o.fallback
	}

	out, _, err := prg.Eval(map[string]any{
		"user_id":     subject.UserID,
		"roles":       nonNil(subject.Roles),
		"permissions": nonNil(subject.Permissions),
		"is_admin":    subject.IsAdmin,
		"resource":    string(resource),
		"action":      string(action),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate policy %s:%s: %w", resource, action, err)
	}

	allowed, ok := out.Value().(bool)
	return ok && allowed, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
