package status

// dashboardHTML is the single-page operator view. It polls /api/status and
// /api/trades and renders them client side, so the server stays a plain JSON
// API.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>kraken-threshold-bot</title>
<style>
  body { font-family: monospace; background: #111; color: #ddd; margin: 2em; }
  h1 { font-size: 1.2em; }
  table { border-collapse: collapse; margin-top: 1em; }
  th, td { border: 1px solid #444; padding: 4px 10px; text-align: right; }
  th { background: #222; }
  td.left, th.left { text-align: left; }
  .buy { color: #7c7; }
  .sell { color: #c77; }
  .err { color: #e66; }
  .muted { color: #888; }
</style>
</head>
<body>
<h1>kraken-threshold-bot</h1>
<table id="status"><tbody></tbody></table>
<h1>Recent trades</h1>
<table id="trades">
<thead><tr>
  <th class="left">time</th><th class="left">side</th><th>qty</th>
  <th>price</th><th>notional</th><th>pnl</th><th class="left">order</th>
</tr></thead>
<tbody></tbody>
</table>
<script>
function row(label, value, cls) {
  return '<tr><td class="left">' + label + '</td><td class="' + (cls || '') + '">' + value + '</td></tr>';
}
function fmt(n, digits) {
  return (typeof n === 'number') ? n.toFixed(digits) : '';
}
async function refreshStatus() {
  const res = await fetch('/api/status');
  const s = await res.json();
  let html = '';
  html += row('pair', s.pair);
  html += row('mode', s.mode + (s.dry_run ? ' (dry run)' : '') + (s.trading_enabled ? '' : ' [disabled]'));
  html += row('price', fmt(s.price, 6));
  html += row('session high', fmt(s.session_high, 6));
  if (s.mode === 'buy') {
    html += row('buy at or below', fmt(s.drop_threshold_price, 6));
  } else {
    html += row('sell at or above', fmt(s.rise_threshold_price, 6));
    html += row('position qty', fmt(s.position.qty, 8));
    html += row('entry price', fmt(s.position.entry_price, 6));
  }
  html += row('usd available', fmt(s.usd_available, 2));
  html += row('base available', fmt(s.base_available, 8));
  html += row('24h start', fmt(s.price_24h_start, 6));
  html += row('24h change', fmt(s.price_24h_change_pct, 2) + '%');
  html += row('realized pnl', fmt(s.realized_pnl, 2));
  html += row('last action', s.last_action || '', 'muted');
  if (s.last_error) html += row('last error', s.last_error, 'err');
  html += row('updated', s.timestamp, 'muted');
  document.querySelector('#status tbody').innerHTML = html;
}
async function refreshTrades() {
  const res = await fetch('/api/trades');
  const trades = await res.json();
  let html = '';
  for (const t of trades.slice().reverse()) {
    html += '<tr>' +
      '<td class="left muted">' + t.timestamp + '</td>' +
      '<td class="left ' + t.side + '">' + t.side + '</td>' +
      '<td>' + fmt(t.qty, 8) + '</td>' +
      '<td>' + fmt(t.price, 6) + '</td>' +
      '<td>' + fmt(t.notional, 2) + '</td>' +
      '<td>' + (t.pnl === null ? '' : fmt(t.pnl, 2)) + '</td>' +
      '<td class="left muted">' + (t.order_id || '') + '</td>' +
      '</tr>';
  }
  document.querySelector('#trades tbody').innerHTML = html;
}
async function refresh() {
  try { await refreshStatus(); await refreshTrades(); } catch (e) {}
}
refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>
`
