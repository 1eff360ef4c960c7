// Package toolchain holds the tools a model may call during a run.
//
// A Registry maps tool names to gentflow.Tool implementations and compiles each tool's
// parameter schema at registration time. Execute validates arguments against that schema
// before the tool runs, so a tool only ever sees arguments of the declared shape.
//
// # Typed Tools
//
// NewFunc wraps a plain function whose input is a struct. Arguments arrive as decoded JSON
// and are converted to the input type through a JSON round trip:
//
//	type lookupInput struct {
//	    OrderID int       `json:"order_id"`
//	    Since   time.Time `json:"since"`
//	}
//
//	lookup := toolchain.NewFunc("lookup_order", "Finds an order by id.",
//	    schema.Object(map[string]*schema.Property{
//	        "order_id": schema.Integer("order id"),
//	        "since":    schema.String("RFC3339 lower bound").Format("date-time"),
//	    }, "order_id"),
//	    func(ctx context.Context, in lookupInput) (*Order, error) {
//	        return db.Find(ctx, in.OrderID, in.Since)
//	    },
//	)
//
//	tools := toolchain.NewRegistry().MustRegister(lookup)
//
// Strings are accepted for time.Time fields (RFC 3339, or a date with an optional
// zone-less time such as "2025-02-15 10:00") and for time.Duration fields ("1h30m").
package toolchain
