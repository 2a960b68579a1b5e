package tle

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Simplified SGP4 (Spacetrack Report #3) constants, WGS-72 gravity model.
// Adapted from FengXuebin-gnssgo/src/tle.go's SGP4_STR3, which is itself a
// Go port of the reference C implementation. The adapter here trims the
// TEME->ECEF rotation the gnssgo TlePos() performs (spec only requires
// Earth-centered inertial output) and operates on km/km-s instead of m/m-s.
const (
	de2ra  = 0.174532925e-1
	e6a    = 1.0e-6
	twopi  = 6.2831853
	xj2    = 1.082616e-3
	xj3    = -0.253881e-5
	xj4    = -1.65597e-6
	xke    = 0.743669161e-1
	xkmper = 6378.135
	xmnpda = 1440.0
	ae     = 1.0
	ck2    = 5.413080e-4
	ck4    = 0.62098875e-6
	qoms2t = 1.88027916e-9
	sConst = 1.01222928
)

// elements is the decoded element set SGP4 needs; derived once in Build.
type elements struct {
	epoch      time.Time
	incRad     float64
	raanRad    float64
	ecc        float64
	argpRad    float64
	meanAnomRad float64
	meanMotion  float64 // rad/min
	bstar       float64
}

// Propagator is an immutable, reusable SGP4 state built from one TLE. Safe
// to share across goroutines (spec §5: propagator handles are immutable
// after construction).
type Propagator struct {
	el elements
}

// Build constructs a reusable propagator from a TLE. It fails with a
// ParseError if any required element cannot be decoded.
func Build(t *TLE) (*Propagator, error) {
	el, err := decodeElements(t)
	if err != nil {
		return nil, err
	}
	return &Propagator{el: el}, nil
}

func decodeElements(t *TLE) (elements, error) {
	epoch, err := t.Epoch()
	if err != nil {
		return elements{}, err
	}

	bstarMantissa, err := parseSignedMantissa(t.Line1, 53, 59)
	if err != nil {
		return elements{}, parseErrf("bstar mantissa: %v", err)
	}
	bstarExp, err := parseSignedExp(t.Line1, 59, 61)
	if err != nil {
		return elements{}, parseErrf("bstar exponent: %v", err)
	}
	bstar := bstarMantissa * 1e-5 * math.Pow(10, bstarExp)

	inc, err := parseFloatField(t.Line2, 8, 16)
	if err != nil {
		return elements{}, parseErrf("inclination: %v", err)
	}
	raan, err := parseFloatField(t.Line2, 17, 25)
	if err != nil {
		return elements{}, parseErrf("raan: %v", err)
	}
	ecc, err := strconv.ParseFloat("0."+strings.TrimSpace(t.Line2[26:33]), 64)
	if err != nil {
		return elements{}, parseErrf("eccentricity: %v", err)
	}
	argp, err := parseFloatField(t.Line2, 34, 42)
	if err != nil {
		return elements{}, parseErrf("arg of perigee: %v", err)
	}
	meanAnom, err := parseFloatField(t.Line2, 43, 51)
	if err != nil {
		return elements{}, parseErrf("mean anomaly: %v", err)
	}
	meanMotionRevDay, err := parseFloatField(t.Line2, 52, 63)
	if err != nil {
		return elements{}, parseErrf("mean motion: %v", err)
	}
	if meanMotionRevDay <= 0 || ecc < 0 {
		return elements{}, parseErrf("degenerate orbital elements for %s", t.Name)
	}

	return elements{
		epoch:       epoch,
		incRad:      inc * de2ra,
		raanRad:     raan * de2ra,
		ecc:         ecc,
		argpRad:     argp * de2ra,
		meanAnomRad: meanAnom * de2ra,
		meanMotion:  meanMotionRevDay * twopi / xmnpda,
		bstar:       bstar,
	}, nil
}

// parseSignedMantissa parses a fixed-point field whose sign is its own
// leading character (NORAD's "assumed decimal point" encoding), e.g. " 12345"
// or "-12345" representing +/-0.12345.
func parseSignedMantissa(line string, start, end int) (float64, error) {
	s := strings.TrimSpace(line[start:end])
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseSignedExp(line string, start, end int) (float64, error) {
	s := strings.TrimSpace(line[start:end])
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Propagate advances the propagator to every time in times, returning
// Earth-centered-inertial positions and velocities in km and km/s. The
// output shares the input grid's length; deterministic, no I/O.
func (p *Propagator) Propagate(times []time.Time) (positions, velocities [][3]float64, err error) {
	positions = make([][3]float64, len(times))
	velocities = make([][3]float64, len(times))
	for i, t := range times {
		tsinceMin := t.Sub(p.el.epoch).Minutes()
		rs, perr := sgp4(p.el, tsinceMin)
		if perr != nil {
			return nil, nil, perr
		}
		positions[i] = [3]float64{rs[0], rs[1], rs[2]}
		velocities[i] = [3]float64{rs[3], rs[4], rs[5]}
	}
	return positions, velocities, nil
}

// sgp4 implements the simplified SGP4 (STR#3) secular+periodic model for one
// time-since-epoch (minutes), returning ECI {x,y,z,vx,vy,vz} in km, km/s.
func sgp4(el elements, tsince float64) ([6]float64, error) {
	xnodeo := el.raanRad
	omegao := el.argpRad
	xmo := el.meanAnomRad
	xincl := el.incRad
	xno := el.meanMotion
	bstar := el.bstar
	eo := el.ecc

	a1 := math.Pow(xke/xno, 2.0/3.0)
	cosio := math.Cos(xincl)
	theta2 := cosio * cosio
	x3thm1 := 3.0*theta2 - 1.0
	eosq := eo * eo
	betao2 := 1.0 - eosq
	betao := math.Sqrt(betao2)
	del1 := 1.5 * ck2 * x3thm1 / (a1 * a1 * betao * betao2)
	ao := a1 * (1.0 - del1*(0.5*(2.0/3.0)+del1*(1.0+134.0/81.0*del1)))
	delo := 1.5 * ck2 * x3thm1 / (ao * ao * betao * betao2)
	xnodp := xno / (1.0 + delo)
	aodp := ao / (1.0 - delo)

	isimp := false
	if (aodp * (1.0 - eo) / ae) < (220.0/xkmper + ae) {
		isimp = true
	}

	s4 := sConst
	qoms24 := qoms2t
	perige := (aodp*(1.0-eo) - ae) * xkmper
	if perige < 156.0 {
		s4 = perige - 78.0
		if perige <= 98.0 {
			s4 = 20.0
		}
		qoms24 = math.Pow((120.0-s4)*ae/xkmper, 4.0)
		s4 = s4/xkmper + ae
	}
	pinvsq := 1.0 / (aodp * aodp * betao2 * betao2)
	tsi := 1.0 / (aodp - s4)
	eta := aodp * eo * tsi
	etasq := eta * eta
	eeta := eo * eta
	psisq := math.Abs(1.0 - etasq)
	coef := qoms24 * math.Pow(tsi, 4.0)
	coef1 := coef / math.Pow(psisq, 3.5)
	c2 := coef1 * xnodp * (aodp*(1.0+1.5*etasq+eeta*(4.0+etasq)) + 0.75*
		ck2*tsi/psisq*x3thm1*(8.0+3.0*etasq*(8.0+etasq)))
	c1 := bstar * c2
	sinio := math.Sin(xincl)
	a3ovk2 := -xj3 / ck2 * math.Pow(ae, 3.0)
	c3 := coef * tsi * a3ovk2 * xnodp * ae * sinio / eo
	x1mth2 := 1.0 - theta2
	c4 := 2.0 * xnodp * coef1 * aodp * betao2 * (eta*
		(2.0+0.5*etasq) + eo*(0.5+2.0*etasq) - 2.0*ck2*tsi/
		(aodp*psisq)*(-3.0*x3thm1*(1.0-2.0*eeta+etasq*
		(1.5-0.5*eeta))+0.75*x1mth2*(2.0*etasq-eeta*
		(1.0+etasq))*math.Cos(2.0*omegao)))
	c5 := 2.0 * coef1 * aodp * betao2 * (1.0 + 2.75*(etasq+eeta) + eeta*etasq)
	theta4 := theta2 * theta2
	temp1 := 3.0 * ck2 * pinvsq * xnodp
	temp2 := temp1 * ck2 * pinvsq
	temp3 := 1.25 * ck4 * pinvsq * pinvsq * xnodp
	xmdot := xnodp + 0.5*temp1*betao*x3thm1 + 0.0625*temp2*betao*
		(13.0-78.0*theta2+137.0*theta4)
	x1m5th := 1.0 - 5.0*theta2
	omgdot := -0.5*temp1*x1m5th + 0.0625*temp2*(7.0-114.0*theta2+
		395.0*theta4) + temp3*(3.0-36.0*theta2+49.0*theta4)
	xhdot1 := -temp1 * cosio
	xnodot := xhdot1 + (0.5*temp2*(4.0-19.0*theta2)+2.0*temp3*(3.0-
		7.0*theta2))*cosio
	omgcof := bstar * c3 * math.Cos(omegao)
	xmcof := -(2.0 / 3.0) * coef * bstar * ae / eeta
	xnodcf := 3.5 * betao2 * xhdot1 * c1
	t2cof := 1.5 * c1
	xlcof := 0.125 * a3ovk2 * sinio * (3.0 + 5.0*cosio) / (1.0 + cosio)
	aycof := 0.25 * a3ovk2 * sinio
	delmo := math.Pow(1.0+eta*math.Cos(xmo), 3.0)
	sinmo := math.Sin(xmo)
	x7thm1 := 7.0*theta2 - 1.0

	var d2, d3, d4, t3cof, t4cof, t5cof float64
	if !isimp {
		c1sq := c1 * c1
		d2 = 4.0 * aodp * tsi * c1sq
		temp := d2 * tsi * c1 / 3.0
		d3 = (17.0*aodp + s4) * temp
		d4 = 0.5 * temp * aodp * tsi * (221.0*aodp + 31.0*s4) * c1
		t3cof = d2 + 2.0*c1sq
		t4cof = 0.25 * (3.0*d3 + c1*(12.0*d2+10.0*c1sq))
		t5cof = 0.2 * (3.0*d4 + 12.0*c1*d3 + 6.0*d2*d2 + 15.0*c1sq*(2.0*d2+c1sq))
	}

	xmdf := xmo + xmdot*tsince
	omgadf := omegao + omgdot*tsince
	xnoddf := xnodeo + xnodot*tsince
	omega := omgadf
	xmp := xmdf
	tsq := tsince * tsince
	xnode := xnoddf + xnodcf*tsq
	tempa := 1.0 - c1*tsince
	tempe := bstar * c4 * tsince
	templ := t2cof * tsq
	if isimp {
		delomg := omgcof * tsince
		delm := xmcof * (math.Pow(1.0+eta*math.Cos(xmdf), 3.0) - delmo)
		temp := delomg + delm
		xmp = xmdf + temp
		omega = omgadf - temp
		tcube := tsq * tsince
		tfour := tsince * tcube
		tempa = tempa - d2*tsq - d3*tcube - d4*tfour
		tempe = tempe + bstar*c5*(math.Sin(xmp)-sinmo)
		templ = templ + t3cof*tcube + tfour*(t4cof+tsince*t5cof)
	}

	a := aodp * math.Pow(tempa, 2.0)
	e := eo - tempe
	xl := xmp + omega + xnode + xnodp*templ
	beta := math.Sqrt(1.0 - e*e)
	xn := xke / math.Pow(a, 1.5)

	axn := e * math.Cos(omega)
	temp := 1.0 / (a * beta * beta)
	xll := temp * xlcof * axn
	aynl := temp * aycof
	xlt := xl + xll
	ayn := e*math.Sin(omega) + aynl

	capu := math.Mod(xlt-xnode, twopi)
	epw := capu
	var sinepw, cosepw, temp3_, temp4, temp5, temp6 float64
	for i := 0; i < 10; i++ {
		sinepw = math.Sin(epw)
		cosepw = math.Cos(epw)
		temp3_ = axn * sinepw
		temp4 = ayn * cosepw
		temp5 = axn * cosepw
		temp6 = ayn * sinepw
		next := (capu-temp4+temp3_-epw)/(1.0-temp5-temp6) + epw
		if math.Abs(next-epw) <= e6a {
			epw = next
			break
		}
		epw = next
	}

	ecose := temp5 + temp6
	esine := temp3_ - temp4
	elsq := axn*axn + ayn*ayn
	temp = 1.0 - elsq
	pl := a * temp
	r := a * (1.0 - ecose)
	temp1 = 1.0 / r
	rdot := xke * math.Sqrt(a) * esine * temp1
	rfdot := xke * math.Sqrt(pl) * temp1
	temp2 = a * temp1
	betal := math.Sqrt(temp)
	temp3 = 1.0 / (1.0 + betal)
	cosu := temp2 * (cosepw - axn + ayn*esine*temp3)
	sinu := temp2 * (sinepw - ayn - axn*esine*temp3)
	u := math.Atan2(sinu, cosu)
	sin2u := 2.0 * sinu * cosu
	cos2u := 2.0*cosu*cosu - 1.0
	temp = 1.0 / pl
	temp1 = ck2 * temp
	temp2 = temp1 * temp

	rk := r*(1.0-1.5*temp2*betal*x3thm1) + 0.5*temp1*x1mth2*cos2u
	uk := u - 0.25*temp2*x7thm1*sin2u
	xnodek := xnode + 1.5*temp2*cosio*sin2u
	xinck := xincl + 1.5*temp2*cosio*sinio*cos2u
	rdotk := rdot - xn*temp1*x1mth2*sin2u
	rfdotk := rfdot + xn*temp1*(x1mth2*cos2u+1.5*x3thm1)

	sinuk := math.Sin(uk)
	cosuk := math.Cos(uk)
	sinik := math.Sin(xinck)
	cosik := math.Cos(xinck)
	sinnok := math.Sin(xnodek)
	cosnok := math.Cos(xnodek)
	xmx := -sinnok * cosik
	xmy := cosnok * cosik
	ux := xmx*sinuk + cosnok*cosuk
	uy := xmy*sinuk + sinnok*cosuk
	uz := sinik * sinuk
	vx := xmx*cosuk - cosnok*sinuk
	vy := xmy*cosuk - sinnok*sinuk
	vz := sinik * cosuk

	x := rk * ux
	y := rk * uy
	z := rk * uz
	xdot := rdotk*ux + rfdotk*vx
	ydot := rdotk*uy + rfdotk*vy
	zdot := rdotk*uz + rfdotk*vz

	var rs [6]float64
	rs[0] = x * xkmper / ae
	rs[1] = y * xkmper / ae
	rs[2] = z * xkmper / ae
	rs[3] = xdot * xkmper / ae * xmnpda / 86400.0
	rs[4] = ydot * xkmper / ae * xmnpda / 86400.0
	rs[5] = zdot * xkmper / ae * xmnpda / 86400.0

	for _, v := range rs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return rs, parseErrf("sgp4 produced non-finite state at tsince=%.3f min", tsince)
		}
	}
	return rs, nil
}
