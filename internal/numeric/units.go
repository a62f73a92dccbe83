package numeric

// The unit types below are thin, distinct wrappers around Dec. They exist
// purely to prevent the fee engine and position store from adding a
// Notional to a Collateral by accident — every cross-unit conversion must
// go through an explicit function (see internal/pricepoint), never an
// implicit arithmetic operator.

// Collateral is an amount of the market's collateral asset.
type Collateral struct{ d Dec }

// NewCollateral wraps d as a Collateral amount.
func NewCollateral(d Dec) Collateral { return Collateral{d} }

// Dec returns the underlying magnitude.
func (c Collateral) Dec() Dec { return c.d }

// FromDec satisfies Valued[Collateral].
func (Collateral) FromDec(d Dec) Collateral { return Collateral{d} }

// Add returns c+o.
func (c Collateral) Add(o Collateral) (Collateral, error) {
	d, err := c.d.Add(o.d)
	return Collateral{d}, err
}

// Sub returns c-o.
func (c Collateral) Sub(o Collateral) (Collateral, error) {
	d, err := c.d.Sub(o.d)
	return Collateral{d}, err
}

// SaturatingSub returns c-o clamped at zero.
func (c Collateral) SaturatingSub(o Collateral) Collateral {
	return Collateral{c.d.SaturatingSub(o.d)}
}

// MulRate scales c by a dimensionless rate (e.g. a fee percentage).
func (c Collateral) MulRate(rate Dec) (Collateral, error) {
	d, err := c.d.Mul(rate)
	return Collateral{d}, err
}

// Cmp orders two Collateral amounts.
func (c Collateral) Cmp(o Collateral) int { return c.d.Cmp(o.d) }

// IsZero reports whether the amount is zero.
func (c Collateral) IsZero() bool { return c.d.IsZero() }

// String renders the amount.
func (c Collateral) String() string { return c.d.String() }

// Signed wraps c into a Signed[Collateral] of the given sign.
func (c Collateral) Signed(negative bool) Signed[Collateral] { return NewSigned(c, negative) }

// MarshalText implements encoding.TextMarshaler, forwarding to the
// underlying Dec so Collateral round-trips through JSON/YAML/msgpack as a
// plain decimal string instead of an empty object.
func (c Collateral) MarshalText() ([]byte, error) { return c.d.MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Collateral) UnmarshalText(text []byte) error { return c.d.UnmarshalText(text) }

// Notional is a position size expressed in the underlying asset, not collateral.
type Notional struct{ d Dec }

func NewNotional(d Dec) Notional                        { return Notional{d} }
func (n Notional) Dec() Dec                              { return n.d }
func (Notional) FromDec(d Dec) Notional                  { return Notional{d} }
func (n Notional) Add(o Notional) (Notional, error)      { d, err := n.d.Add(o.d); return Notional{d}, err }
func (n Notional) Sub(o Notional) (Notional, error)      { d, err := n.d.Sub(o.d); return Notional{d}, err }
func (n Notional) Cmp(o Notional) int                    { return n.d.Cmp(o.d) }
func (n Notional) IsZero() bool                          { return n.d.IsZero() }
func (n Notional) String() string                        { return n.d.String() }
func (n Notional) Signed(negative bool) Signed[Notional] { return NewSigned(n, negative) }

// MarshalText implements encoding.TextMarshaler.
func (n Notional) MarshalText() ([]byte, error) { return n.d.MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Notional) UnmarshalText(text []byte) error { return n.d.UnmarshalText(text) }

// Usd is a USD-denominated amount, used for cost-basis tracking independent
// of the collateral asset's own USD price.
type Usd struct{ d Dec }

func NewUsd(d Dec) Usd                   { return Usd{d} }
func (u Usd) Dec() Dec                   { return u.d }
func (Usd) FromDec(d Dec) Usd            { return Usd{d} }
func (u Usd) Add(o Usd) (Usd, error)     { d, err := u.d.Add(o.d); return Usd{d}, err }
func (u Usd) Sub(o Usd) (Usd, error)     { d, err := u.d.Sub(o.d); return Usd{d}, err }
func (u Usd) Cmp(o Usd) int              { return u.d.Cmp(o.d) }
func (u Usd) IsZero() bool               { return u.d.IsZero() }
func (u Usd) String() string             { return u.d.String() }

// MarshalText implements encoding.TextMarshaler.
func (u Usd) MarshalText() ([]byte, error) { return u.d.MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *Usd) UnmarshalText(text []byte) error { return u.d.UnmarshalText(text) }

// LpToken is a liquidity-pool share unit (LP or xLP).
type LpToken struct{ d Dec }

func NewLpToken(d Dec) LpToken                     { return LpToken{d} }
func (l LpToken) Dec() Dec                         { return l.d }
func (LpToken) FromDec(d Dec) LpToken              { return LpToken{d} }
func (l LpToken) Add(o LpToken) (LpToken, error)   { d, err := l.d.Add(o.d); return LpToken{d}, err }
func (l LpToken) Sub(o LpToken) (LpToken, error)   { d, err := l.d.Sub(o.d); return LpToken{d}, err }
func (l LpToken) Cmp(o LpToken) int                { return l.d.Cmp(o.d) }
func (l LpToken) IsZero() bool                     { return l.d.IsZero() }
func (l LpToken) String() string                   { return l.d.String() }

// MarshalText implements encoding.TextMarshaler.
func (l LpToken) MarshalText() ([]byte, error) { return l.d.MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *LpToken) UnmarshalText(text []byte) error { return l.d.UnmarshalText(text) }

// Base is a quantity denominated in the market's base (notional) asset unit
// price, distinct from Notional (a position size) to keep §4.A's typed-unit
// separation intact for quantities like open interest measured in base units.
type Base struct{ d Dec }

func NewBase(d Dec) Base                 { return Base{d} }
func (b Base) Dec() Dec                  { return b.d }
func (Base) FromDec(d Dec) Base          { return Base{d} }
func (b Base) Add(o Base) (Base, error)  { d, err := b.d.Add(o.d); return Base{d}, err }
func (b Base) Sub(o Base) (Base, error)  { d, err := b.d.Sub(o.d); return Base{d}, err }
func (b Base) Cmp(o Base) int            { return b.d.Cmp(o.d) }
func (b Base) IsZero() bool              { return b.d.IsZero() }
func (b Base) String() string            { return b.d.String() }

// MarshalText implements encoding.TextMarshaler.
func (b Base) MarshalText() ([]byte, error) { return b.d.MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Base) UnmarshalText(text []byte) error { return b.d.UnmarshalText(text) }

// Price is an exchange rate between two units (notional-per-collateral or
// usd-per-collateral); every cross-unit conversion in the system is
// mediated by a Price drawn from a PricePoint.
type Price struct{ d Dec }

func NewPrice(d Dec) Price                  { return Price{d} }
func (p Price) Dec() Dec                    { return p.d }
func (Price) FromDec(d Dec) Price           { return Price{d} }
func (p Price) Add(o Price) (Price, error)  { d, err := p.d.Add(o.d); return Price{d}, err }
func (p Price) Sub(o Price) (Price, error)  { d, err := p.d.Sub(o.d); return Price{d}, err }
func (p Price) Cmp(o Price) int             { return p.d.Cmp(o.d) }
func (p Price) IsZero() bool                { return p.d.IsZero() }
func (p Price) String() string              { return p.d.String() }

// MarshalText implements encoding.TextMarshaler.
func (p Price) MarshalText() ([]byte, error) { return p.d.MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Price) UnmarshalText(text []byte) error { return p.d.UnmarshalText(text) }
