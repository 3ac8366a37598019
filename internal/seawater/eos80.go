// Package seawater implements the EOS-80 seawater routines exposed to computed
// parameters. Temperatures are ITS-90 in degrees C, pressures in decibars,
// salinities on the practical salinity scale.
package seawater

import "math"

const (
	deg2rad = math.Pi / 180
	omega   = 7.292e-5 // earth rotation rate, rad/s
)

// T68conv converts ITS-90 temperature to IPTS-68.
func T68conv(t90 float64) float64 { return t90 * 1.00024 }

// T90conv converts IPTS-68 temperature to ITS-90.
func T90conv(t68 float64) float64 { return t68 / 1.00024 }

// Smow is the density of Standard Mean Ocean Water (kg/m^3).
func Smow(t float64) float64 {
	const (
		a0 = 999.842594
		a1 = 6.793952e-2
		a2 = -9.095290e-3
		a3 = 1.001685e-4
		a4 = -1.120083e-6
		a5 = 6.536332e-9
	)
	t68 := T68conv(t)
	return a0 + (a1+(a2+(a3+(a4+a5*t68)*t68)*t68)*t68)*t68
}

// Dens0 is the density of seawater at atmospheric pressure (kg/m^3).
func Dens0(s, t float64) float64 {
	const (
		b0 = 8.24493e-1
		b1 = -4.0899e-3
		b2 = 7.6438e-5
		b3 = -8.2467e-7
		b4 = 5.3875e-9
		c0 = -5.72466e-3
		c1 = 1.0227e-4
		c2 = -1.6546e-6
		d0 = 4.8314e-4
	)
	t68 := T68conv(t)
	return Smow(t) +
		(b0+(b1+(b2+(b3+b4*t68)*t68)*t68)*t68)*s +
		(c0+(c1+c2*t68)*t68)*s*math.Sqrt(s) +
		d0*s*s
}

// Seck is the secant bulk modulus of seawater (bars).
func Seck(s, t, p float64) float64 {
	p = p / 10 // decibars to bars
	t68 := T68conv(t)

	const (
		h0 = 3.239908
		h1 = 1.43713e-3
		h2 = 1.16092e-4
		h3 = -5.77905e-7
	)
	aw := h0 + (h1+(h2+h3*t68)*t68)*t68

	const (
		k0 = 8.50935e-5
		k1 = -6.12293e-6
		k2 = 5.2787e-8
	)
	bw := k0 + (k1+k2*t68)*t68

	const (
		e0 = 19652.21
		e1 = 148.4206
		e2 = -2.327105
		e3 = 1.360477e-2
		e4 = -5.155288e-5
	)
	kw := e0 + (e1+(e2+(e3+e4*t68)*t68)*t68)*t68

	const (
		j0 = 1.91075e-4
		i0 = 2.2838e-3
		i1 = -1.0981e-5
		i2 = -1.6078e-6
	)
	sr := math.Sqrt(s)
	a := aw + (i0+(i1+i2*t68)*t68+j0*sr)*s

	const (
		m0 = -9.9348e-7
		m1 = 2.0816e-8
		m2 = 9.1697e-10
	)
	b := bw + (m0+(m1+m2*t68)*t68)*s

	const (
		f0 = 54.6746
		f1 = -0.603459
		f2 = 1.09987e-2
		f3 = -6.1670e-5
		g0 = 7.944e-2
		g1 = 1.6483e-2
		g2 = -5.3009e-4
	)
	k0s := kw + (f0+(f1+(f2+f3*t68)*t68)*t68+(g0+(g1+g2*t68)*t68)*sr)*s

	return k0s + (a+b*p)*p
}

// Dens is the in-situ density of seawater (kg/m^3).
func Dens(s, t, p float64) float64 {
	k := Seck(s, t, p)
	return Dens0(s, t) / (1 - (p/10)/k)
}

// Adtg is the adiabatic temperature gradient (K/dbar).
func Adtg(s, t, p float64) float64 {
	const (
		a0 = 3.5803e-5
		a1 = 8.5258e-6
		a2 = -6.836e-8
		a3 = 6.6228e-10
		b0 = 1.8932e-6
		b1 = -4.2393e-8
		c0 = 1.8741e-8
		c1 = -6.7795e-10
		c2 = 8.733e-12
		c3 = -5.4481e-14
		d0 = -1.1351e-10
		d1 = 2.7759e-12
		e0 = -4.6206e-13
		e1 = 1.8676e-14
		e2 = -2.1687e-16
	)
	t68 := T68conv(t)
	ds := s - 35
	return a0 + (a1+(a2+a3*t68)*t68)*t68 +
		(b0+b1*t68)*ds +
		((c0+(c1+(c2+c3*t68)*t68)*t68)+(d0+d1*t68)*ds)*p +
		(e0+(e1+e2*t68)*t68)*p*p
}

// Ptmp is the potential temperature referenced to pr (4th order Runge-Kutta).
func Ptmp(s, t, p, pr float64) float64 {
	delP := pr - p
	delTh := delP * Adtg(s, t, p)
	th := T68conv(t) + 0.5*delTh
	q := delTh

	delTh = delP * Adtg(s, T90conv(th), p+0.5*delP)
	th += (1 - 1/math.Sqrt2) * (delTh - q)
	q = (2-math.Sqrt2)*delTh + (-2+3/math.Sqrt2)*q

	delTh = delP * Adtg(s, T90conv(th), p+0.5*delP)
	th += (1 + 1/math.Sqrt2) * (delTh - q)
	q = (2+math.Sqrt2)*delTh + (-2-3/math.Sqrt2)*q

	delTh = delP * Adtg(s, T90conv(th), p+delP)
	th += (delTh - 2*q) / 6
	return T90conv(th)
}

// Pden is the potential density referenced to pr (kg/m^3).
func Pden(s, t, p, pr float64) float64 {
	return Dens(s, Ptmp(s, t, p, pr), pr)
}

// Pres converts depth (m) to pressure (dbar) at latitude lat.
func Pres(depth, lat float64) float64 {
	x := math.Sin(math.Abs(lat) * deg2rad)
	c1 := 5.92e-3 + x*x*5.25e-3
	return ((1 - c1) - math.Sqrt((1-c1)*(1-c1)-8.84e-6*depth)) / 4.42e-6
}

// Dpth converts pressure (dbar) to depth (m) at latitude lat.
func Dpth(p, lat float64) float64 {
	const (
		c1      = 9.72659
		c2      = -2.2512e-5
		c3      = 2.279e-10
		c4      = -1.82e-15
		gamDash = 2.184e-6
	)
	x := math.Sin(math.Abs(lat) * deg2rad)
	x *= x
	bot := 9.780318*(1+(5.2788e-3+2.36e-5*x)*x) + gamDash*0.5*p
	top := (((c4*p+c3)*p+c2)*p + c1) * p
	return top / bot
}

// G is the acceleration of gravity (m/s^2) at latitude lat, sea level.
func G(lat float64) float64 {
	x := math.Sin(lat * deg2rad)
	x *= x
	return 9.780318 * (1 + 5.2788e-3*x + 2.36e-5*x*x)
}

// F is the Coriolis parameter (1/s).
func F(lat float64) float64 {
	return 2 * omega * math.Sin(lat*deg2rad)
}

// Fp is the freezing point of seawater (deg C ITS-90).
func Fp(s, p float64) float64 {
	const (
		a0 = -0.0575
		a1 = 1.710523e-3
		a2 = -2.154996e-4
		b  = -7.53e-4
	)
	return T90conv(a0*s + a1*s*math.Sqrt(s) + a2*s*s + b*p)
}

type gasCoeffs struct {
	a1, a2, a3, a4, b1, b2, b3 float64
}

var (
	o2Coeffs = gasCoeffs{-173.4292, 249.6339, 143.3483, -21.8492, -0.033096, 0.014259, -0.0017}
	n2Coeffs = gasCoeffs{-172.4965, 248.4262, 143.0738, -21.7120, -0.049781, 0.025018, -0.0034861}
	arCoeffs = gasCoeffs{-173.5146, 245.4510, 141.8222, -21.8020, -0.034474, 0.014934, -0.0017729}
)

func saturation(c gasCoeffs, s, t float64) float64 {
	tk := T68conv(t) + 273.15
	x := tk / 100
	lnC := c.a1 + c.a2*(100/tk) + c.a3*math.Log(x) + c.a4*x +
		s*(c.b1+c.b2*x+c.b3*x*x)
	return math.Exp(lnC)
}

// SatO2 is the oxygen saturation concentration (ml/l).
func SatO2(s, t float64) float64 { return saturation(o2Coeffs, s, t) }

// SatN2 is the nitrogen saturation concentration (ml/l).
func SatN2(s, t float64) float64 { return saturation(n2Coeffs, s, t) }

// SatAr is the argon saturation concentration (ml/l).
func SatAr(s, t float64) float64 { return saturation(arCoeffs, s, t) }
