package sqlinline

const QSelectRecentKeywords = `--sql e4a1b7c3-6d92-4f0e-8b15-c3f7a9d2e6b8
select
  phrase,
  volume,
  difficulty,
  coalesce(idea, ''),
  researched_at
from keyword_research
order by researched_at desc, volume desc
limit $1::int;
`

const QInsertKeyword = `--sql 5f0d2a9e-8c47-4b13-9e6a-1b4c7d8e2f35
insert into keyword_research (
  id,
  idea,
  phrase,
  volume,
  cpc,
  difficulty,
  difficulty_label,
  researched_at
) values (
  gen_random_uuid(),
  $1::text,
  $2::text,
  $3::int,
  $4::numeric,
  $5::int,
  $6::text,
  now()
)
on conflict (idea, phrase) do update set
  volume = excluded.volume,
  cpc = excluded.cpc,
  difficulty = excluded.difficulty,
  difficulty_label = excluded.difficulty_label,
  researched_at = excluded.researched_at;
`
